// Package config loads range-audit settings from a project's
// pyproject.toml, under a [tool.rangeaudit] table — the same place
// pip-audit itself reads tool configuration from, and the convention most
// Python tooling follows for settings that don't belong in a dedicated
// file.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/depscan/rangeaudit/rangeerr"
)

// Config holds every setting the CLI needs beyond the project's own
// requirements, with defaults suitable for a first run against the public
// PyPI and OSV services.
type Config struct {
	Ecosystem          string `toml:"ecosystem"`
	IncludePrereleases bool   `toml:"include_prereleases"`
	MaxDepth           int    `toml:"max_depth"`
	CacheDir           string `toml:"cache_dir"`
	OSVBaseURL         string `toml:"osv_base_url"`
	PyPIBaseURL        string `toml:"pypi_base_url"`
	StrictExit         bool   `toml:"strict_exit"`
	IncludeDescription bool   `toml:"include_description"`
	IncludeAliases     bool   `toml:"include_aliases"`
}

// Default returns the configuration used when pyproject.toml carries no
// [tool.rangeaudit] table, or no config file is given at all.
func Default() Config {
	return Config{
		Ecosystem:   "PyPI",
		MaxDepth:    10,
		CacheDir:    defaultCacheDir(),
		OSVBaseURL:  "https://api.osv.dev",
		PyPIBaseURL: "https://pypi.org",
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/rangeaudit"
	}
	return ".rangeaudit-cache"
}

type pyprojectFile struct {
	Tool struct {
		RangeAudit Config `toml:"rangeaudit"`
	} `toml:"tool"`
}

// Load reads path (a pyproject.toml) and returns its [tool.rangeaudit]
// table, falling back to Default() for any field the file doesn't set.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, rangeerr.InvalidInput("read config file "+path, err)
	}

	wrapper := pyprojectFile{}
	wrapper.Tool.RangeAudit = Default()
	if err := toml.Unmarshal(data, &wrapper); err != nil {
		return Config{}, rangeerr.InvalidInput("parse config file "+path, err)
	}
	return wrapper.Tool.RangeAudit, nil
}
