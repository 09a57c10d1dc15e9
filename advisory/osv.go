// Package advisory queries the OSV (Open Source Vulnerability) database
// for advisories affecting a package, normalizing each advisory's affected
// ranges into the specifier.AffectedUnion and rangekey.RangeKey the rest
// of the analyzer operates on.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/depscan/rangeaudit/internal/httpcache"
	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/rangeerr"
	"github.com/depscan/rangeaudit/rangekey"
	"github.com/depscan/rangeaudit/specifier"
)

// PyPIEcosystem is the OSV ecosystem name for Python packages.
const PyPIEcosystem = "PyPI"

// Advisory is a single normalized advisory affecting a package.
type Advisory struct {
	ID            string
	Aliases       []string
	Summary       string
	FixVersions   []string
	AffectedRange specifier.AffectedUnion
	RangeKey      rangekey.RangeKey
}

// Service looks up advisories for a package in a given ecosystem.
type Service interface {
	Query(ctx context.Context, ecosystem, packageName string) ([]Advisory, error)
}

type osvEvent struct {
	Introduced   string `json:"introduced"`
	Fixed        string `json:"fixed"`
	LastAffected string `json:"last_affected"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvAffected struct {
	Package struct {
		Ecosystem string `json:"ecosystem"`
		Name      string `json:"name"`
	} `json:"package"`
	Ranges []osvRange `json:"ranges"`
}

type osvVuln struct {
	ID            string        `json:"id"`
	Aliases       []string      `json:"aliases"`
	Summary       string        `json:"summary"`
	Details       string        `json:"details"`
	Withdrawn     string        `json:"withdrawn"`
	SchemaVersion string        `json:"schema_version"`
	Affected      []osvAffected `json:"affected"`
}

type osvQueryResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

// OSVService queries the public OSV HTTP API, caching responses on disk
// and collapsing concurrent identical queries via singleflight — the same
// memoization strategy the metadata package uses for PyPI lookups.
type OSVService struct {
	BaseURL string
	HTTP    *http.Client
	Cache   *httpcache.Cache

	group singleflight.Group
}

// NewOSVService builds an OSVService. If httpClient is nil,
// http.DefaultClient is used.
func NewOSVService(baseURL string, httpClient *http.Client, cache *httpcache.Cache) *OSVService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OSVService{BaseURL: baseURL, HTTP: httpClient, Cache: cache}
}

// Query implements Service.
func (s *OSVService) Query(ctx context.Context, ecosystem, packageName string) ([]Advisory, error) {
	cacheKey := fmt.Sprintf("osv:%s:%s", ecosystem, packageName)

	var resp osvQueryResponse
	if s.Cache != nil {
		if found, err := s.Cache.Get(cacheKey, &resp); err == nil && found {
			return normalizeAll(resp, ecosystem)
		}
	}

	raw, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		body, err := json.Marshal(map[string]interface{}{
			"package": map[string]string{"name": packageName, "ecosystem": ecosystem},
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/query", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		httpResp, err := s.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d querying OSV for %s", httpResp.StatusCode, packageName)
		}
		return io.ReadAll(httpResp.Body)
	})
	if err != nil {
		return nil, rangeerr.AdvisoryUnavailable(packageName, err)
	}

	if err := json.Unmarshal(raw.([]byte), &resp); err != nil {
		return nil, rangeerr.AdvisoryUnavailable(packageName, fmt.Errorf("decode OSV response: %w", err))
	}
	if s.Cache != nil {
		_ = s.Cache.Set(cacheKey, resp)
	}

	return normalizeAll(resp, ecosystem)
}

func normalizeAll(resp osvQueryResponse, ecosystem string) ([]Advisory, error) {
	out := make([]Advisory, 0, len(resp.Vulns))
	for _, vuln := range resp.Vulns {
		adv, ok, err := normalizeOne(vuln, ecosystem)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, adv)
		}
	}
	return out, nil
}

// normalizeOne applies the per-advisory filtering and flattening rules:
// schema_version major-version gating, withdrawn exclusion, primary-id
// selection preferring a PYSEC-prefixed alias, and flattening every
// ECOSYSTEM-typed ranges block for the queried ecosystem into a single
// event sequence before computing the affected union and range key. OSV
// advisories occasionally carry more than one ranges block of the same
// type for a single affected entry (e.g. a correction appended alongside
// the original); treating them as independent unions would let a
// resolved, no-longer-affected interval still show up in the result, so
// all matching events are merged into one sequence first.
func normalizeOne(vuln osvVuln, ecosystem string) (Advisory, bool, error) {
	if vuln.Withdrawn != "" {
		return Advisory{}, false, nil
	}
	if !isSupportedSchema(vuln.SchemaVersion) {
		return Advisory{}, false, nil
	}

	var events []rangekey.Event
	for _, affected := range vuln.Affected {
		if affected.Package.Ecosystem != ecosystem {
			continue
		}
		for _, r := range affected.Ranges {
			if r.Type != "ECOSYSTEM" {
				continue
			}
			for _, e := range r.Events {
				switch {
				case e.Introduced != "":
					events = append(events, rangekey.Introduced(e.Introduced))
				case e.Fixed != "":
					events = append(events, rangekey.Fixed(e.Fixed))
				case e.LastAffected != "":
					events = append(events, rangekey.LastAffected(e.LastAffected))
				}
			}
		}
	}
	if len(events) == 0 {
		return Advisory{}, false, nil
	}

	affectedRange, key, err := rangekey.Normalize(events)
	if err != nil {
		return Advisory{}, false, fmt.Errorf("advisory %s: %w", vuln.ID, err)
	}

	primaryID, aliases := choosePrimaryID(vuln.ID, vuln.Aliases)

	summary := vuln.Summary
	if summary == "" {
		summary = vuln.Details
	}

	var fixVersions []string
	for _, e := range events {
		if e.Kind == rangekey.KindFixed {
			fixVersions = append(fixVersions, e.Version)
		}
	}
	fixVersions = SortFixVersions(fixVersions)

	return Advisory{
		ID:            primaryID,
		Aliases:       aliases,
		Summary:       summary,
		FixVersions:   fixVersions,
		AffectedRange: affectedRange,
		RangeKey:      key,
	}, true, nil
}

// SortFixVersions orders fix_versions by PEP 440 precedence rather than
// lexically, so e.g. "1.9" sorts before "1.10". A string that fails to
// parse as a PEP 440 version (should not occur: these strings already
// passed through rangekey.Normalize) is kept, sorted lexically after every
// parseable version, rather than dropped.
func SortFixVersions(raw []string) []string {
	type entry struct {
		raw string
		v   pep440.Version
		ok  bool
	}
	entries := make([]entry, len(raw))
	for i, s := range raw {
		v, err := pep440.Parse(s)
		entries[i] = entry{raw: s, v: v, ok: err == nil}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ok && b.ok {
			return a.v.Less(b.v)
		}
		if a.ok != b.ok {
			return a.ok
		}
		return a.raw < b.raw
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}

// isSupportedSchema reports whether schemaVersion's major version is 1, or
// the field is absent (older advisories predating schema_version).
func isSupportedSchema(schemaVersion string) bool {
	if schemaVersion == "" {
		return true
	}
	major := strings.SplitN(schemaVersion, ".", 2)[0]
	return major == "1"
}

// choosePrimaryID picks the advisory's primary identifier, preferring a
// PYSEC-prefixed alias over the vuln's own id when one is present — PyPI
// advisories are frequently filed upstream under a GHSA id with a PYSEC
// alias added by the PyPI Advisory Database, and PYSEC is the more
// specific, PyPI-native identifier. The chosen primary is excluded from
// the returned alias list.
func choosePrimaryID(id string, aliases []string) (string, []string) {
	primary := id
	if !strings.HasPrefix(id, "PYSEC-") {
		for _, a := range aliases {
			if strings.HasPrefix(a, "PYSEC-") {
				primary = a
				break
			}
		}
	}

	rest := make([]string, 0, len(aliases)+1)
	seen := map[string]bool{primary: true}
	if id != primary && !seen[id] {
		rest = append(rest, id)
		seen[id] = true
	}
	for _, a := range aliases {
		if seen[a] {
			continue
		}
		seen[a] = true
		rest = append(rest, a)
	}
	sort.Strings(rest)
	return primary, rest
}
