// Package specifier implements PEP 440 specifier sets: conjunctive
// predicates over pep440.Version, plus the two semantic wrappers the
// range-mode analyzer distinguishes throughout — AllowedEnvelope
// (intersection: a version must satisfy every clause) and AffectedUnion
// (union: a version is vulnerable if it satisfies any member specifier).
//
// Keeping these as distinct named types (rather than both being bare
// []Specifier) exists specifically to prevent the AND/OR confusion the
// spec calls out as a correctness hazard: intersecting when a union was
// meant silently under-reports vulnerable overlap, and vice versa.
package specifier

import (
	"fmt"
	"strings"

	"github.com/depscan/rangeaudit/pep440"
)

// Op is a PEP 440 comparison operator.
type Op string

const (
	OpLT  Op = "<"
	OpLE  Op = "<="
	OpEQ  Op = "=="
	OpGE  Op = ">="
	OpGT  Op = ">"
	OpNE  Op = "!="
)

// Clause is a single `op version` predicate.
type Clause struct {
	Op      Op
	Version pep440.Version
}

// Matches reports whether v satisfies the clause.
func (c Clause) Matches(v pep440.Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpEQ:
		return cmp == 0
	case OpGE:
		return cmp >= 0
	case OpGT:
		return cmp > 0
	case OpNE:
		return cmp != 0
	default:
		return false
	}
}

func (c Clause) String() string {
	return string(c.Op) + c.Version.String()
}

// Specifier is a conjunctive predicate over pep440.Version: a version
// satisfies the Specifier iff it satisfies every clause. The zero value
// (no clauses) matches every version, including prereleases admitted via
// AdmitsPrereleases.
//
// Clauses are kept unsimplified, deliberately: equivalence between
// specifiers is tested by membership, not by syntactic or simplified
// equality, so clause lists may be kept as-is. Two Specifiers with
// differently-ordered or duplicated clauses that match the same set of
// versions are equivalent even though they are not == as Go values.
type Specifier struct {
	clauses []Clause
}

// New builds a Specifier from the given clauses.
func New(clauses ...Clause) Specifier {
	return Specifier{clauses: append([]Clause(nil), clauses...)}
}

// Parse parses a comma-separated PEP 440 specifier string such as
// ">=1.21,!=1.25,<2.0". An empty string parses to the empty Specifier
// (matches everything).
func Parse(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Specifier{}, nil
	}
	parts := strings.Split(s, ",")
	clauses := make([]Clause, 0, len(parts))
	for _, part := range parts {
		c, err := parseClause(part)
		if err != nil {
			return Specifier{}, err
		}
		clauses = append(clauses, c)
	}
	return Specifier{clauses: clauses}, nil
}

func parseClause(s string) (Clause, error) {
	s = strings.TrimSpace(s)
	for _, op := range []Op{OpLE, OpGE, OpNE, OpEQ, OpLT, OpGT} {
		if strings.HasPrefix(s, string(op)) {
			rest := strings.TrimSpace(strings.TrimPrefix(s, string(op)))
			v, err := pep440.Parse(rest)
			if err != nil {
				return Clause{}, fmt.Errorf("invalid specifier clause %q: %w", s, err)
			}
			return Clause{Op: op, Version: v}, nil
		}
	}
	return Clause{}, fmt.Errorf("invalid specifier clause %q: unrecognized operator", s)
}

// Empty reports whether s has no clauses (matches every version).
func (s Specifier) Empty() bool { return len(s.clauses) == 0 }

// Clauses returns a copy of s's clause list.
func (s Specifier) Clauses() []Clause {
	return append([]Clause(nil), s.clauses...)
}

// Contains reports whether v satisfies every clause in s. Prereleases are
// excluded unless includePrereleases is true or s itself names a
// prerelease clause (AdmitsPrereleases), mirroring PEP 440's default
// prerelease-exclusion behavior for specifier matching.
func (s Specifier) Contains(v pep440.Version, includePrereleases bool) bool {
	return s.ContainsWithDecision(v, includePrereleases || s.AdmitsPrereleases())
}

// ContainsWithDecision reports whether v satisfies every clause in s,
// using includePrereleases as the final word on whether prereleases are
// admitted — unlike Contains, it does not fall back to s.AdmitsPrereleases()
// on its own. Callers that must apply one prerelease-admission decision
// across several Specifiers (e.g. an allowed envelope and an affected
// union being checked against the same candidate) compute that decision
// once and pass it to every ContainsWithDecision call, so admission
// depends on the whole comparison rather than on whichever specifier
// happens to receive the call.
func (s Specifier) ContainsWithDecision(v pep440.Version, includePrereleases bool) bool {
	if v.IsPrerelease() && !includePrereleases {
		return false
	}
	for _, c := range s.clauses {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// AdmitsPrereleases reports whether any clause explicitly names a
// prerelease version, in which case the specifier is considered to opt in
// to prerelease matching (PEP 440 / packaging.specifiers semantics).
func (s Specifier) AdmitsPrereleases() bool {
	for _, c := range s.clauses {
		if c.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

// Intersect returns the conjunction of s and other: a Specifier whose
// clause list is the concatenation of both (duplicates are harmless since
// membership, not clause identity, is what matters).
func (s Specifier) Intersect(other Specifier) Specifier {
	if s.Empty() {
		return other
	}
	if other.Empty() {
		return s
	}
	merged := make([]Clause, 0, len(s.clauses)+len(other.clauses))
	merged = append(merged, s.clauses...)
	merged = append(merged, other.clauses...)
	return Specifier{clauses: merged}
}

func (s Specifier) String() string {
	if s.Empty() {
		return ""
	}
	parts := make([]string, len(s.clauses))
	for i, c := range s.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// AllowedEnvelope is a Specifier under intersection semantics: the set of
// versions a declared constraint set permits. See the package doc comment.
type AllowedEnvelope = Specifier

// AffectedUnion is an ordered tuple of Specifiers under union semantics: a
// version is vulnerable iff it matches any member. The empty tuple matches
// no version (distinct from an empty Specifier, which matches every
// version) — this asymmetry is intentional: AllowedEnvelope and
// AffectedUnion use opposite identities for "no constraint".
type AffectedUnion []Specifier

// Contains reports whether v matches any member specifier.
func (u AffectedUnion) Contains(v pep440.Version, includePrereleases bool) bool {
	for _, s := range u {
		if s.Contains(v, includePrereleases) {
			return true
		}
	}
	return false
}

// ContainsWithDecision reports whether v matches any member specifier,
// applying includePrereleases as one fixed decision across every member
// instead of letting each member re-derive admission from its own clauses.
// See Specifier.ContainsWithDecision.
func (u AffectedUnion) ContainsWithDecision(v pep440.Version, includePrereleases bool) bool {
	for _, s := range u {
		if s.ContainsWithDecision(v, includePrereleases) {
			return true
		}
	}
	return false
}

// Display renders u in the "(<1.0) OR (>=2.0,<2.5)" style used by the
// canonical JSON output's affected_range field.
func (u AffectedUnion) Display() string {
	if len(u) == 0 {
		return "*"
	}
	if len(u) == 1 {
		if u[0].Empty() {
			return "*"
		}
		return u[0].String()
	}
	parts := make([]string, len(u))
	for i, s := range u {
		if s.Empty() {
			parts[i] = "(*)"
		} else {
			parts[i] = fmt.Sprintf("(%s)", s.String())
		}
	}
	return strings.Join(parts, " OR ")
}
