// Package builder runs the monotone fixpoint work-list traversal that
// turns a project's direct requirements into a fully populated
// constraint graph: every transitively reachable package, with its
// intersected allowed-version envelope, discovered by repeatedly fetching
// metadata for newly-constrained packages and parsing their own declared
// requirements.
package builder

import (
	"context"
	"strings"

	"github.com/depscan/rangeaudit/graph"
	"github.com/depscan/rangeaudit/internal/rlog"
	"github.com/depscan/rangeaudit/metadata"
	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/overlap"
	"github.com/depscan/rangeaudit/specifier"
)

// Options configures a Build run.
type Options struct {
	// MaxDepth bounds how many requirement hops from the project root the
	// traversal will follow. A package discovered at MaxDepth is still
	// recorded in the graph; its own requirements are not expanded.
	MaxDepth int

	// IncludePrereleases admits prerelease versions into envelope
	// satisfiability checks and requires_dist selection.
	IncludePrereleases bool
}

// Result is everything the traversal produced.
type Result struct {
	Graph                    *graph.ConstraintGraph
	Unsatisfiable            []model.UnsatisfiableEnvelope
	MetadataStats            model.MetadataStats
	PackagesWithRequiresDist int
}

type workItem struct {
	name     string
	envelope specifier.AllowedEnvelope
	via      []string
	depth    int
}

// Build walks the constraint graph starting from roots.
func Build(ctx context.Context, provider metadata.Provider, roots []model.Requirement, opts Options) (*Result, error) {
	log := rlog.New(ctx)
	g := graph.NewConstraintGraph()
	var unsatisfiable []model.UnsatisfiableEnvelope
	var stats model.MetadataStats

	queue := make([]workItem, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, workItem{
			name:     model.CanonicalName(r.Name),
			envelope: r.Specifier,
			via:      []string{"<project>"},
			depth:    0,
		})
	}

	// seen dedups on the exact constraint signature (package, envelope
	// text, contributing path), not merely on (package, depth): an
	// identical work item is processed only once, while two different
	// envelopes for the same package both run through AddConstraint so the
	// intersection narrows correctly. The same envelope arriving via a
	// different path is a different signature and is processed again;
	// MaxDepth is what bounds the traversal.
	seen := make(map[string]bool)

	// metaCache memoizes provider.GetMetadata per package name: a package
	// reached from several parents re-runs AddConstraint/overlap checks on
	// every narrowing, but its metadata (and the stats that describing it
	// accumulates into) must only be fetched and counted once — §4.F's
	// versions_examined invariant is per attempted version, not per
	// constraint that happens to touch that version.
	type metaEntry struct {
		pm  metadata.PackageMetadata
		err error
	}
	metaCache := make(map[string]metaEntry)
	packagesWithRequiresDist := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		sig := item.name + "\x00" + item.envelope.String() + "\x00" + strings.Join(item.via, ">")
		if seen[sig] {
			continue
		}
		seen[sig] = true

		node := g.GetOrCreate(item.name)
		changed := node.AddConstraint(item.envelope, item.via, item.depth)
		if !changed {
			continue
		}

		entry, cached := metaCache[item.name]
		if !cached {
			pm, pstats, err := provider.GetMetadata(ctx, item.name)
			stats.VersionsExamined += pstats.VersionsExamined
			stats.VersionsWithRequiresDist += pstats.VersionsWithRequiresDist
			stats.VersionsNoMetadataAvailable += pstats.VersionsNoMetadataAvailable
			stats.VersionsFetchFailed += pstats.VersionsFetchFailed
			stats.VersionsParseFailed += pstats.VersionsParseFailed
			if pstats.VersionsWithRequiresDist > 0 {
				packagesWithRequiresDist++
			}
			entry = metaEntry{pm: pm, err: err}
			metaCache[item.name] = entry
		}
		pm, err := entry.pm, entry.err
		if err != nil {
			log.Logf("metadata lookup failed for %s: %v", item.name, err)
			continue
		}

		known := pm.KnownVersions()
		envelope := node.Envelope()
		switch overlap.IsEnvelopeEmpty(envelope, known, opts.IncludePrereleases) {
		case overlap.EmptinessEmpty:
			unsatisfiable = append(unsatisfiable, model.UnsatisfiableEnvelope{
				Package:  item.name,
				Envelope: envelope,
				Via:      node.Via(),
			})
			continue
		case overlap.EmptinessUnknown:
			continue
		}

		if item.depth >= opts.MaxDepth {
			continue
		}

		seenReq := make(map[string]bool)
		for _, vm := range pm.Versions {
			if !vm.Available {
				continue
			}
			if !envelope.Contains(vm.Version, opts.IncludePrereleases) {
				continue
			}
			for _, raw := range vm.RequiresDist {
				if seenReq[raw] {
					continue
				}
				seenReq[raw] = true

				req, err := ParseRequirement(raw)
				if err != nil {
					log.Logf("skipping unparseable requirement %q of %s: %v", raw, item.name, err)
					continue
				}
				if ShouldSkip(req) {
					continue
				}

				childVia := append(append([]string{}, item.via...), item.name)
				queue = append(queue, workItem{
					name:     req.Name,
					envelope: req.Specifier,
					via:      childVia,
					depth:    item.depth + 1,
				})
			}
		}
	}

	return &Result{
		Graph:                    g,
		Unsatisfiable:            unsatisfiable,
		MetadataStats:            stats,
		PackagesWithRequiresDist: packagesWithRequiresDist,
	}, nil
}
