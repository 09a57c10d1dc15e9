// Package audit ties the constraint builder, metadata provider, and
// advisory service together into the range-mode audit: for every package
// the project transitively depends on, find advisories whose affected
// range overlaps the package's resolved allowed envelope, and report the
// concrete versions that witness the overlap.
package audit

import (
	"context"
	"sort"

	"github.com/depscan/rangeaudit/advisory"
	"github.com/depscan/rangeaudit/builder"
	"github.com/depscan/rangeaudit/internal/rlog"
	"github.com/depscan/rangeaudit/metadata"
	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/overlap"
	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/specifier"
)

// Options configures a RangeAuditor.
type Options struct {
	// Ecosystem is the OSV ecosystem name to query; defaults to
	// advisory.PyPIEcosystem.
	Ecosystem string

	IncludePrereleases bool
	MaxDepth           int
}

// Report is the full result of an audit run.
type Report struct {
	Findings         []model.ConstraintFinding
	Unsatisfiable    []model.UnsatisfiableEnvelope
	MetadataCoverage model.MetadataCoverage
	AdvisoryCoverage model.AdvisoryCoverage
}

// RangeAuditor runs the end-to-end range-mode audit.
type RangeAuditor struct {
	Metadata   metadata.Provider
	Advisories advisory.Service
	Options    Options
}

// NewRangeAuditor builds a RangeAuditor.
func NewRangeAuditor(m metadata.Provider, a advisory.Service, opts Options) *RangeAuditor {
	if opts.Ecosystem == "" {
		opts.Ecosystem = advisory.PyPIEcosystem
	}
	return &RangeAuditor{Metadata: m, Advisories: a, Options: opts}
}

// Audit builds the constraint graph from roots, then checks every
// reachable package's resolved envelope against its advisories.
func (a *RangeAuditor) Audit(ctx context.Context, roots []model.Requirement) (*Report, error) {
	log := rlog.New(ctx)

	built, err := builder.Build(ctx, a.Metadata, roots, builder.Options{
		MaxDepth:           a.Options.MaxDepth,
		IncludePrereleases: a.Options.IncludePrereleases,
	})
	if err != nil {
		return nil, err
	}

	nodes := built.Graph.Nodes()
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var coverage model.AdvisoryCoverage
	grouped := make(map[string]map[string]*groupedFinding)

	for _, name := range names {
		node := nodes[name]
		coverage.PackagesQueried++

		dependency := model.ConstrainedDependency{
			Name:              name,
			Envelope:          node.Envelope(),
			ConstraintSources: immediateSources(node.Via()),
		}

		advisories, err := a.Advisories.Query(ctx, a.Options.Ecosystem, name)
		if err != nil {
			coverage.QueryErrors++
			log.Logf("advisory lookup failed for %s: %v", name, err)
			continue
		}
		if len(advisories) > 0 {
			coverage.PackagesWithAdvisories++
		}
		if len(advisories) == 0 {
			continue
		}

		pm, _, err := a.Metadata.GetMetadata(ctx, name)
		if err != nil {
			log.Logf("metadata lookup failed for %s during overlap check: %v", name, err)
			continue
		}
		known := pm.KnownVersions()
		yanked := pm.YankedSet()
		envelope := node.Envelope()

		for _, adv := range advisories {
			coverage.AdvisoriesExamined++
			result := overlap.Overlaps(envelope, adv.AffectedRange, known, yanked, a.Options.IncludePrereleases)
			if !result.Overlaps {
				continue
			}

			// Translate the advisory into the §3 per-advisory shape before
			// it is merged into the grouped, per-range_key finding below.
			vuln := model.VulnerabilityRangeResult{
				ID:            adv.ID,
				Description:   adv.Summary,
				Aliases:       adv.Aliases,
				FixVersions:   adv.FixVersions,
				AffectedRange: adv.AffectedRange,
				RangeKey:      adv.RangeKey,
			}

			key := adv.RangeKey.String()
			if grouped[name] == nil {
				grouped[name] = make(map[string]*groupedFinding)
			}
			gf, ok := grouped[name][key]
			if !ok {
				gf = &groupedFinding{dependency: dependency, rangeKey: key}
				grouped[name][key] = gf
			}
			gf.merge(vuln, result.Witnesses)
		}
	}

	findings := make([]model.ConstraintFinding, 0, len(grouped))
	for _, byKey := range grouped {
		for _, gf := range byKey {
			findings = append(findings, gf.finalize())
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Dependency.Name != findings[j].Dependency.Name {
			return findings[i].Dependency.Name < findings[j].Dependency.Name
		}
		return findings[i].RangeKeyText < findings[j].RangeKeyText
	})

	metadataCoverage := model.MetadataCoverage{
		MetadataStats:            built.MetadataStats,
		PackagesTotal:            len(nodes),
		PackagesWithRequiresDist: built.PackagesWithRequiresDist,
	}

	return &Report{
		Findings:         findings,
		Unsatisfiable:    built.Unsatisfiable,
		MetadataCoverage: metadataCoverage,
		AdvisoryCoverage: coverage,
	}, nil
}

// groupedFinding accumulates every VulnerabilityRangeResult sharing one
// (package, range_key) pair, per §4.I, before being flattened into the
// final model.ConstraintFinding with its ids/aliases unioned.
type groupedFinding struct {
	dependency    model.ConstrainedDependency
	rangeKey      string
	affectedRange specifier.AffectedUnion // first seen, all members share one normalized range
	description   string
	ids           []string
	aliases       []string
	fixVersions   []string
	witnesses     pep440.Versions
}

func (gf *groupedFinding) merge(vuln model.VulnerabilityRangeResult, witnesses pep440.Versions) {
	if gf.ids == nil {
		gf.affectedRange = vuln.AffectedRange
		gf.description = vuln.Description
	}
	gf.addID(vuln.ID)
	for _, alias := range vuln.Aliases {
		gf.addAlias(alias)
	}
	for _, fv := range vuln.FixVersions {
		gf.addFixVersion(fv)
	}
	gf.witnesses = mergeWitnesses(gf.witnesses, witnesses)
}

func (gf *groupedFinding) addFixVersion(fv string) {
	for _, existing := range gf.fixVersions {
		if existing == fv {
			return
		}
	}
	gf.fixVersions = append(gf.fixVersions, fv)
}

func (gf *groupedFinding) addID(id string) {
	for _, existing := range gf.ids {
		if existing == id {
			return
		}
	}
	for _, existing := range gf.aliases {
		if existing == id {
			return
		}
	}
	gf.ids = append(gf.ids, id)
}

func (gf *groupedFinding) addAlias(alias string) {
	for _, existing := range gf.ids {
		if existing == alias {
			return
		}
	}
	for _, existing := range gf.aliases {
		if existing == alias {
			return
		}
	}
	gf.aliases = append(gf.aliases, alias)
}

func (gf *groupedFinding) finalize() model.ConstraintFinding {
	sort.Sort(gf.witnesses)
	aliases := dedupSortedStrings(append([]string(nil), gf.aliases...))
	return model.ConstraintFinding{
		Dependency:                  gf.dependency,
		IDs:                         gf.ids,
		Description:                 gf.description,
		Aliases:                     aliases,
		AffectedRange:               gf.affectedRange,
		FixVersions:                 advisory.SortFixVersions(gf.fixVersions),
		RangeKeyText:                gf.rangeKey,
		VulnerableVersionsPermitted: gf.witnesses,
	}
}

// immediateSources reduces every full requirement path recorded by the
// constraint graph down to its immediate contributing source (the package
// or "<project>" sentinel that declared the constraint), deduplicated and
// in first-seen order — the flat `constraint_sources` list §3 describes.
func immediateSources(via [][]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, path := range via {
		if len(path) == 0 {
			continue
		}
		source := path[len(path)-1]
		if seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, source)
	}
	return out
}

func mergeWitnesses(a, b pep440.Versions) pep440.Versions {
	seen := make(map[string]bool, len(a))
	out := make(pep440.Versions, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v.String()] {
			seen[v.String()] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v.String()] {
			seen[v.String()] = true
			out = append(out, v)
		}
	}
	return out
}

func dedupSortedStrings(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	var last string
	for i, s := range in {
		if i == 0 || s != last {
			out = append(out, s)
			last = s
		}
	}
	return out
}
