// Package metadata fetches, for a given package, the set of known
// versions, which are yanked, and each version's requires_dist strings —
// the raw dependency declarations the constraint graph builder walks.
//
// Per-version requires_dist is a PyPI JSON API wrinkle worth naming: the
// top-level project JSON document only carries requires_dist for the
// latest release. Getting requires_dist for an older release means a
// second request to that release's own JSON endpoint, and even then some
// older uploads (sdist-only, pre-wheel) never published structured
// metadata at all — that is a legitimate "no metadata available" outcome,
// not a fetch failure, and the two are tracked separately so a report
// doesn't conflate "we couldn't reach PyPI" with "PyPI never had this."
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/depscan/rangeaudit/internal/httpcache"
	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/rangeerr"
)

// VersionMetadata is one release of a package.
type VersionMetadata struct {
	Version      pep440.Version
	RequiresDist []string
	Yanked       bool
	Available    bool
}

// PackageMetadata is everything known about a package's releases.
type PackageMetadata struct {
	Name     string
	Versions []VersionMetadata
}

// KnownVersions returns every parsed version, in no particular order.
func (m PackageMetadata) KnownVersions() []pep440.Version {
	out := make([]pep440.Version, len(m.Versions))
	for i, v := range m.Versions {
		out[i] = v.Version
	}
	return out
}

// YankedSet returns the set of yanked versions, keyed by canonical string
// form, for use with the overlap package.
func (m PackageMetadata) YankedSet() map[string]bool {
	out := map[string]bool{}
	for _, v := range m.Versions {
		if v.Yanked {
			out[v.Version.String()] = true
		}
	}
	return out
}

// Provider looks up package metadata. Implementations must be safe for
// concurrent use, since one provider may be shared by several callers;
// the constraint builder itself issues its lookups one at a time.
type Provider interface {
	GetMetadata(ctx context.Context, name string) (PackageMetadata, model.MetadataStats, error)
}

type pypiProjectResponse struct {
	Info struct {
		RequiresDist []string `json:"requires_dist"`
		Version      string   `json:"version"`
	} `json:"info"`
	Releases map[string][]struct {
		Yanked bool `json:"yanked"`
	} `json:"releases"`
}

type pypiReleaseResponse struct {
	Info struct {
		RequiresDist []string `json:"requires_dist"`
	} `json:"info"`
}

// PyPIProvider fetches metadata from the PyPI JSON API, memoizing both
// in-flight requests (via singleflight, so concurrent callers auditing the
// same transitive dependency don't issue duplicate HTTP requests) and
// completed ones (via a disk-backed httpcache.Cache).
type PyPIProvider struct {
	BaseURL string
	HTTP    *http.Client
	Cache   *httpcache.Cache

	group singleflight.Group
}

// NewPyPIProvider builds a PyPIProvider backed by cache. If httpClient is
// nil, http.DefaultClient is used.
func NewPyPIProvider(baseURL string, httpClient *http.Client, cache *httpcache.Cache) *PyPIProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PyPIProvider{BaseURL: baseURL, HTTP: httpClient, Cache: cache}
}

// GetMetadata implements Provider.
func (p *PyPIProvider) GetMetadata(ctx context.Context, name string) (PackageMetadata, model.MetadataStats, error) {
	var proj pypiProjectResponse
	if err := p.fetchJSON(ctx, fmt.Sprintf("project:%s", name), p.projectURL(name), &proj); err != nil {
		return PackageMetadata{}, model.MetadataStats{}, rangeerr.ProviderUnavailable(name, err)
	}

	var stats model.MetadataStats
	var versions []VersionMetadata

	for verStr, files := range proj.Releases {
		v, err := pep440.Parse(verStr)
		if err != nil {
			continue // not a PEP 440 release tag (e.g. a stray dev tag); not part of the examined set
		}
		stats.VersionsExamined++

		yanked := false
		for _, f := range files {
			if f.Yanked {
				yanked = true
				break
			}
		}

		reqs, available, err := p.requiresDistFor(ctx, name, verStr, verStr == proj.Info.Version, proj.Info.RequiresDist)
		switch {
		case err != nil:
			stats.VersionsFetchFailed++
		case !available:
			stats.VersionsNoMetadataAvailable++
		default:
			stats.VersionsWithRequiresDist++
		}

		versions = append(versions, VersionMetadata{
			Version:      v,
			RequiresDist: reqs,
			Yanked:       yanked,
			Available:    available,
		})
	}

	return PackageMetadata{Name: name, Versions: versions}, stats, nil
}

// requiresDistFor returns the requires_dist list for one release. When the
// release is the project's current latest version, its requires_dist is
// already present in the project document and no second request is made.
func (p *PyPIProvider) requiresDistFor(ctx context.Context, name, version string, isLatest bool, latestReqs []string) ([]string, bool, error) {
	if isLatest {
		return latestReqs, len(latestReqs) > 0, nil
	}

	var rel pypiReleaseResponse
	cacheKey := fmt.Sprintf("release:%s:%s", name, version)
	if err := p.fetchJSON(ctx, cacheKey, p.releaseURL(name, version), &rel); err != nil {
		return nil, false, err
	}
	return rel.Info.RequiresDist, len(rel.Info.RequiresDist) > 0, nil
}

func (p *PyPIProvider) projectURL(name string) string {
	return fmt.Sprintf("%s/pypi/%s/json", p.BaseURL, name)
}

func (p *PyPIProvider) releaseURL(name, version string) string {
	return fmt.Sprintf("%s/pypi/%s/%s/json", p.BaseURL, name, version)
}

// fetchJSON fetches url into dest, consulting and populating the disk
// cache under cacheKey, and collapsing concurrent identical requests via
// singleflight.
func (p *PyPIProvider) fetchJSON(ctx context.Context, cacheKey, url string, dest interface{}) error {
	if p.Cache != nil {
		if found, err := p.Cache.Get(cacheKey, dest); err == nil && found {
			return nil
		}
	}

	raw, err, _ := p.group.Do(cacheKey, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	body := raw.([]byte)
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	if p.Cache != nil {
		_ = p.Cache.Set(cacheKey, dest)
	}
	return nil
}
