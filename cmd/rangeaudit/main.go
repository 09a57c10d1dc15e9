// Command rangeaudit checks a project's declared requirements against
// known OSV advisories in range mode: it resolves the allowed-version
// envelope for every transitively reachable package and reports whether
// that envelope overlaps any advisory's affected range, rather than
// assuming a single pinned version.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depscan/rangeaudit/advisory"
	"github.com/depscan/rangeaudit/audit"
	"github.com/depscan/rangeaudit/config"
	"github.com/depscan/rangeaudit/internal/httpcache"
	"github.com/depscan/rangeaudit/metadata"
)

func main() {
	ctx := context.Background()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		requirementsPath string
		configPath       string
		format           string
		cacheDirFlag     string
		maxDepthFlag     int
		includePre       bool
		strictFlag       bool
		includeDesc      bool
		includeAliases   bool
	)

	cmd := &cobra.Command{
		Use:   "rangeaudit",
		Short: "Audit declared dependency ranges against known vulnerabilities",
		Long: "rangeaudit resolves the allowed-version envelope for every package a project " +
			"transitively depends on and reports whether that envelope overlaps any known " +
			"advisory's affected range, instead of checking only a single resolved version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cacheDirFlag != "" {
				cfg.CacheDir = cacheDirFlag
			}
			if maxDepthFlag > 0 {
				cfg.MaxDepth = maxDepthFlag
			}
			if includePre {
				cfg.IncludePrereleases = true
			}
			if strictFlag {
				cfg.StrictExit = true
			}
			if includeDesc {
				cfg.IncludeDescription = true
			}
			if includeAliases {
				cfg.IncludeAliases = true
			}

			roots, err := readRequirements(requirementsPath)
			if err != nil {
				return err
			}

			cache, err := httpcache.Open(cfg.CacheDir)
			if err != nil {
				return err
			}
			defer cache.Close()

			metaProvider := metadata.NewPyPIProvider(cfg.PyPIBaseURL, nil, cache)
			advisories := advisory.NewOSVService(cfg.OSVBaseURL, nil, cache)

			auditor := audit.NewRangeAuditor(metaProvider, advisories, audit.Options{
				Ecosystem:          cfg.Ecosystem,
				IncludePrereleases: cfg.IncludePrereleases,
				MaxDepth:           cfg.MaxDepth,
			})

			report, err := auditor.Audit(ctx, roots)
			if err != nil {
				return err
			}

			formatOpts := audit.FormatOptions{
				IncludeDescription: cfg.IncludeDescription,
				IncludeAliases:     cfg.IncludeAliases,
			}
			switch format {
			case "json":
				err = report.WriteJSON(cmd.OutOrStdout(), formatOpts)
			default:
				err = report.WriteText(cmd.OutOrStdout(), formatOpts)
			}
			if err != nil {
				return err
			}

			if cfg.StrictExit && len(report.Findings) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&requirementsPath, "project", "", "path to a requirements file (one PEP 508 requirement per line)")
	flags.StringVar(&configPath, "config", "", "path to a pyproject.toml with a [tool.rangeaudit] table")
	flags.StringVar(&format, "format", "text", "output format: text or json")
	flags.StringVar(&cacheDirFlag, "cache-dir", "", "override the metadata/advisory cache directory")
	flags.IntVar(&maxDepthFlag, "max-depth", 0, "override the maximum transitive dependency depth")
	flags.BoolVar(&includePre, "include-prereleases", false, "admit prerelease versions into envelope and overlap checks")
	flags.BoolVar(&strictFlag, "strict", false, "exit 1 if any finding is reported")
	flags.BoolVar(&includeDesc, "include-description", false, "include each advisory's description in the report")
	flags.BoolVar(&includeAliases, "include-aliases", false, "include each advisory's known aliases in the report")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
