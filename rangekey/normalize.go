// Package rangekey converts an advisory's ordered range events
// (introduced/fixed/last_affected) into the two representations the rest
// of the analyzer needs: an AffectedUnion for membership testing, and a
// RangeKey for deduplicating advisories whose affected ranges describe the
// same geometry via different syntax.
package rangekey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/specifier"
)

// Kind identifies the kind of a single range event.
type Kind int

const (
	KindIntroduced Kind = iota
	KindFixed
	KindLastAffected
)

// Event is one entry in an advisory's range.events list.
type Event struct {
	Kind    Kind
	Version string
}

// Introduced, Fixed, and LastAffected build Events of the matching kind.
func Introduced(v string) Event   { return Event{Kind: KindIntroduced, Version: v} }
func Fixed(v string) Event        { return Event{Kind: KindFixed, Version: v} }
func LastAffected(v string) Event { return Event{Kind: KindLastAffected, Version: v} }

// Bound is one edge of an interval: either unbounded (⊥) or a concrete
// version.
type Bound struct {
	Unbounded bool
	Version   pep440.Version
}

// UnboundedBound is the ⊥ bound value.
var UnboundedBound = Bound{Unbounded: true}

func (b Bound) String() string {
	if b.Unbounded {
		return "*"
	}
	return b.Version.String()
}

// Interval is a (lower, upper) pair as tracked by RangeKey. Unlike the
// Specifier built for the same affected range, an Interval does not record
// whether its upper bound is open or closed: RangeKey exists purely to
// recognize "these advisories describe the same geometry," and the
// open/closed distinction does not change grouping for released versions
// separated by a fix point.
type Interval struct {
	Lower Bound
	Upper Bound
}

// RangeKey is the canonical, sorted-and-merged form of a sequence of
// affected-range intervals.
type RangeKey []Interval

// String renders a deterministic representation of k, used as the
// comparable dedup key for grouping findings by (package, range_key).
func (k RangeKey) String() string {
	parts := make([]string, len(k))
	for i, iv := range k {
		parts[i] = fmt.Sprintf("(%s,%s)", iv.Lower, iv.Upper)
	}
	return strings.Join(parts, ";")
}

// lowerState tracks the "open_lower" variable from the §4.B algorithm:
// either no interval is open, one is open at the "0" (-infinity) sentinel,
// or one is open at a concrete version.
type lowerState struct {
	open  bool
	zero  bool
	value pep440.Version
}

// Normalize converts an ordered list of affected-range events into the
// AffectedUnion the overlap engine consumes and the RangeKey used for
// finding-level deduplication, via a single left-to-right pass:
//
//  1. introduced v — if no interval is open, open one at v; if one is
//     already open, the event is ignored (the earliest introduced governs
//     until the interval closes).
//  2. fixed v, with an interval open — emits the half-open interval
//     [open_lower, v) and closes it.
//  3. last_affected v, with an interval open — emits the closed-upper
//     interval [open_lower, v] and closes it.
//  4. end of events with an interval still open — emits [open_lower, +∞).
func Normalize(events []Event) (specifier.AffectedUnion, RangeKey, error) {
	var union specifier.AffectedUnion
	var intervals []Interval
	var open lowerState

	openAt := func(v string) error {
		if open.open {
			return nil
		}
		pv, err := pep440.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid introduced version %q: %w", v, err)
		}
		if pv.IsZero() {
			open = lowerState{open: true, zero: true}
			return nil
		}
		open = lowerState{open: true, value: pv}
		return nil
	}

	closeAt := func(upper pep440.Version, inclusive bool) {
		var spec specifier.Specifier
		lowerBound := Bound{Unbounded: open.zero}
		if open.zero {
			op := specifier.OpLT
			if inclusive {
				op = specifier.OpLE
			}
			spec = specifier.New(specifier.Clause{Op: op, Version: upper})
		} else {
			lowerBound.Version = open.value
			upOp := specifier.OpLT
			if inclusive {
				upOp = specifier.OpLE
			}
			spec = specifier.New(
				specifier.Clause{Op: specifier.OpGE, Version: open.value},
				specifier.Clause{Op: upOp, Version: upper},
			)
		}
		union = append(union, spec)
		intervals = append(intervals, Interval{Lower: lowerBound, Upper: Bound{Version: upper}})
		open = lowerState{}
	}

	for _, e := range events {
		switch e.Kind {
		case KindIntroduced:
			if err := openAt(e.Version); err != nil {
				return nil, nil, err
			}
		case KindFixed:
			if !open.open {
				continue
			}
			v, err := pep440.Parse(e.Version)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid fixed version %q: %w", e.Version, err)
			}
			closeAt(v, false)
		case KindLastAffected:
			if !open.open {
				continue
			}
			v, err := pep440.Parse(e.Version)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid last_affected version %q: %w", e.Version, err)
			}
			closeAt(v, true)
		}
	}

	if open.open {
		if open.zero {
			union = append(union, specifier.Specifier{})
			intervals = append(intervals, Interval{Lower: UnboundedBound, Upper: UnboundedBound})
		} else {
			union = append(union, specifier.New(specifier.Clause{Op: specifier.OpGE, Version: open.value}))
			intervals = append(intervals, Interval{Lower: Bound{Version: open.value}, Upper: UnboundedBound})
		}
	}

	return union, canonicalize(intervals), nil
}

// canonicalize applies the RangeKey-specific normalization: zero lower
// bounds become ⊥, intervals are sorted by lower bound (⊥ first), and
// overlapping or adjacent intervals are merged.
func canonicalize(intervals []Interval) RangeKey {
	normalized := make([]Interval, len(intervals))
	for i, iv := range intervals {
		lower := iv.Lower
		if !lower.Unbounded && lower.Version.IsZero() {
			lower = UnboundedBound
		}
		normalized[i] = Interval{Lower: lower, Upper: iv.Upper}
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		li, lj := normalized[i].Lower, normalized[j].Lower
		if li.Unbounded != lj.Unbounded {
			return li.Unbounded
		}
		if li.Unbounded {
			return false
		}
		return li.Version.Less(lj.Version)
	})

	var merged []Interval
	for _, iv := range normalized {
		if len(merged) == 0 {
			merged = append(merged, iv)
			continue
		}
		last := &merged[len(merged)-1]
		canMerge := last.Upper.Unbounded || iv.Lower.Unbounded ||
			!last.Upper.Version.Less(iv.Lower.Version)
		if !canMerge {
			merged = append(merged, iv)
			continue
		}
		if iv.Lower.Unbounded {
			last.Lower = UnboundedBound
		}
		switch {
		case last.Upper.Unbounded:
			// absorbs iv entirely
		case iv.Upper.Unbounded:
			last.Upper = UnboundedBound
		case iv.Upper.Version.Compare(last.Upper.Version) > 0:
			last.Upper = iv.Upper
		}
	}
	if merged == nil {
		return RangeKey{}
	}
	return RangeKey(merged)
}
