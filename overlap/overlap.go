// Package overlap decides whether a declared constraint envelope and an
// advisory's affected-version union can ever agree on a concrete, released
// version, against a catalog of known versions for the package.
package overlap

import (
	"sort"

	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/specifier"
)

// Emptiness is the tri-valued result of asking whether an envelope matches
// any known version. Unknown must never be conflated with Empty: an empty
// catalog (no known versions fetched) says nothing about whether the
// envelope is satisfiable, it only says the catalog was unavailable.
type Emptiness int

const (
	EmptinessUnknown Emptiness = iota
	EmptinessNonEmpty
	EmptinessEmpty
)

// IsEnvelopeEmpty reports whether envelope matches any version in known.
// An empty known-versions catalog always yields EmptinessUnknown, even
// though the loop below would trivially "find" no match — the caller must
// be able to distinguish "nothing satisfies this" from "we couldn't check."
func IsEnvelopeEmpty(envelope specifier.AllowedEnvelope, known []pep440.Version, includePrereleases bool) Emptiness {
	if len(known) == 0 {
		return EmptinessUnknown
	}
	shouldIncludePrereleases := includePrereleases || envelope.AdmitsPrereleases()
	for _, v := range known {
		if envelope.ContainsWithDecision(v, shouldIncludePrereleases) {
			return EmptinessNonEmpty
		}
	}
	return EmptinessEmpty
}

// Result is the outcome of Overlaps.
type Result struct {
	Overlaps  bool
	Witnesses pep440.Versions
}

// Overlaps reports whether any released, non-yanked version in known
// satisfies both allowed (the declared constraint envelope, under
// intersection semantics) and vulnerable (the advisory's affected-version
// union). It returns every such version as a witness, sorted ascending, so
// callers can report concrete evidence rather than a bare boolean.
//
// yanked holds the canonical string form of every yanked version for the
// package; yanked releases are excluded from consideration per PEP 592 —
// they remain installable by pin but are never offered by a resolver, so
// an envelope that only intersects a yanked release does not overlap.
func Overlaps(
	allowed specifier.AllowedEnvelope,
	vulnerable specifier.AffectedUnion,
	known []pep440.Version,
	yanked map[string]bool,
	includePrereleases bool,
) Result {
	// Computed once, per §4.C: a candidate's prerelease status is judged
	// against the comparison as a whole, not against whichever of allowed
	// or vulnerable happens to receive the Contains call.
	shouldIncludePrereleases := includePrereleases || allowed.AdmitsPrereleases()

	var witnesses pep440.Versions
	for _, candidate := range known {
		if yanked[candidate.String()] {
			continue
		}
		if !allowed.ContainsWithDecision(candidate, shouldIncludePrereleases) {
			continue
		}
		if !vulnerable.ContainsWithDecision(candidate, shouldIncludePrereleases) {
			continue
		}
		witnesses = append(witnesses, candidate)
	}
	sort.Sort(witnesses)
	return Result{Overlaps: len(witnesses) > 0, Witnesses: witnesses}
}
