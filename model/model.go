// Package model holds the value types shared across the constraint graph,
// advisory lookup, and audit reporting layers: constraint provenance,
// per-advisory range results, grouped findings, and the coverage
// statistics the audit report surfaces so a reader can judge how much of
// the dependency tree was actually examined.
package model

import (
	"fmt"

	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/rangekey"
	"github.com/depscan/rangeaudit/specifier"
)

// Requirement is a single parsed dependency requirement: a package name, a
// specifier (conjunctive, AllowedEnvelope semantics), and the raw extras it
// was declared under. Environment markers are kept as the raw expression
// string; the builder decides whether to evaluate or skip them.
type Requirement struct {
	Name      string
	Specifier specifier.AllowedEnvelope
	Extras    []string
	RawMarker string
}

// ConstrainedDependency is the fully resolved, immutable output shape of
// one node in the constraint graph (§3): package Name, its intersected
// AllowedEnvelope, and ConstraintSources — the flat, deduplicated set of
// requirement-path entries that contributed a constraint to it.
type ConstrainedDependency struct {
	Name              string
	Envelope          specifier.AllowedEnvelope
	ConstraintSources []string
}

// VulnerabilityRangeResult is the result of normalizing one advisory's
// affected range against a package, before findings sharing a RangeKey are
// grouped together (§3/§4.G): `ID` is the advisory's chosen primary
// identifier and `Aliases` every other identifier it is known under.
type VulnerabilityRangeResult struct {
	ID            string
	Description   string
	Aliases       []string
	FixVersions   []string
	AffectedRange specifier.AffectedUnion
	RangeKey      rangekey.RangeKey
}

// AffectedRangeDisplay renders the advisory's affected range in the
// "(<1.0) OR (>=2.0,<2.5)" canonical display form.
func (r VulnerabilityRangeResult) AffectedRangeDisplay() string {
	return r.AffectedRange.Display()
}

// ConstraintFinding is the output of grouping every VulnerabilityRangeResult
// for one package that shares a RangeKey into a single finding (§4.I):
// distinct advisories describing the same affected geometry are collapsed
// so a report does not list the same practical exposure twice under two
// advisory IDs. IDs is the union of the grouped advisories' primary ids,
// with the first grouped advisory's primary id kept first; Aliases is the
// union of their aliases. An identifier appears in at most one of the two.
type ConstraintFinding struct {
	Dependency                  ConstrainedDependency
	IDs                         []string
	Description                 string
	Aliases                     []string
	AffectedRange               specifier.AffectedUnion
	FixVersions                 []string
	RangeKeyText                string
	VulnerableVersionsPermitted pep440.Versions
}

// AffectedRangeDisplay renders f's affected range in the
// "(<1.0) OR (>=2.0,<2.5)" canonical display form.
func (f ConstraintFinding) AffectedRangeDisplay() string {
	return f.AffectedRange.Display()
}

// UnsatisfiableEnvelope records a package whose intersected constraint
// envelope has no known satisfying version: either the intersection of
// declared requirements is provably empty, or (IsUnknown) the package
// catalog could not be fetched so satisfiability could not be determined.
type UnsatisfiableEnvelope struct {
	Package   string
	Envelope  specifier.AllowedEnvelope
	Via       [][]string
	IsUnknown bool
}

// MetadataStats partitions every version examined while walking the
// constraint graph into exactly one of four buckets. The partition
// invariant (checked by Validate) exists so the audit report can state
// plainly how much of the tree's metadata was actually available, rather
// than silently treating fetch/parse failures as "no requirements."
type MetadataStats struct {
	VersionsExamined            int
	VersionsWithRequiresDist    int
	VersionsNoMetadataAvailable int
	VersionsFetchFailed         int
	VersionsParseFailed         int
}

// Validate checks the partition invariant:
// VersionsWithRequiresDist + VersionsNoMetadataAvailable + VersionsFetchFailed
// + VersionsParseFailed == VersionsExamined.
func (s MetadataStats) Validate() error {
	sum := s.VersionsWithRequiresDist + s.VersionsNoMetadataAvailable +
		s.VersionsFetchFailed + s.VersionsParseFailed
	if sum != s.VersionsExamined {
		return fmt.Errorf("metadata stats partition invariant violated: buckets sum to %d, examined %d", sum, s.VersionsExamined)
	}
	return nil
}

// ToMap renders s as the flat map used by the canonical JSON coverage
// section.
func (s MetadataStats) ToMap() map[string]int {
	return map[string]int{
		"versions_examined":              s.VersionsExamined,
		"versions_with_requires_dist":    s.VersionsWithRequiresDist,
		"versions_no_metadata_available": s.VersionsNoMetadataAvailable,
		"versions_fetch_failed":          s.VersionsFetchFailed,
		"versions_parse_failed":          s.VersionsParseFailed,
	}
}

// MetadataCoverage snapshots MetadataStats plus the package-level totals
// §3 calls out: how many packages were examined at all, and how many of
// them had at least one version carrying Requires-Dist metadata.
type MetadataCoverage struct {
	MetadataStats
	PackagesTotal            int
	PackagesWithRequiresDist int
}

// ToMap renders c as the flat map used by the canonical JSON
// transitive_metadata_completeness section.
func (c MetadataCoverage) ToMap() map[string]int {
	m := c.MetadataStats.ToMap()
	m["packages_total"] = c.PackagesTotal
	m["packages_with_requires_dist"] = c.PackagesWithRequiresDist
	return m
}

// AdvisoryCoverage tracks how much of the advisory lookup surface was
// actually reached: how many packages were queried, how many advisories
// came back, and how many lookups failed outright (distinct from a
// package simply having no advisories).
type AdvisoryCoverage struct {
	PackagesQueried        int
	PackagesWithAdvisories int
	AdvisoriesExamined     int
	QueryErrors            int
}

// ToMap renders c as the flat map used by the canonical JSON coverage
// section.
func (c AdvisoryCoverage) ToMap() map[string]int {
	return map[string]int{
		"packages_queried":         c.PackagesQueried,
		"packages_with_advisories": c.PackagesWithAdvisories,
		"advisories_examined":      c.AdvisoriesExamined,
		"query_errors":             c.QueryErrors,
	}
}
