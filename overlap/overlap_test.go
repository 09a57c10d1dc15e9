package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/specifier"
)

func mustV(t *testing.T, s string) pep440.Version {
	t.Helper()
	v, err := pep440.Parse(s)
	require.NoError(t, err)
	return v
}

func versions(t *testing.T, ss ...string) []pep440.Version {
	t.Helper()
	out := make([]pep440.Version, len(ss))
	for i, s := range ss {
		out[i] = mustV(t, s)
	}
	return out
}

func TestIsEnvelopeEmptyUnknownOnNoCatalog(t *testing.T) {
	env, _ := specifier.Parse(">=1.0")
	assert.Equal(t, EmptinessUnknown, IsEnvelopeEmpty(env, nil, false))
}

func TestIsEnvelopeEmptyTrueWhenNoKnownVersionSatisfies(t *testing.T) {
	env, _ := specifier.Parse(">=99.0")
	known := versions(t, "1.0", "2.0", "3.0")
	assert.Equal(t, EmptinessEmpty, IsEnvelopeEmpty(env, known, false))
}

func TestIsEnvelopeEmptyFalseWhenSatisfied(t *testing.T) {
	env, _ := specifier.Parse(">=2.0")
	known := versions(t, "1.0", "2.0", "3.0")
	assert.Equal(t, EmptinessNonEmpty, IsEnvelopeEmpty(env, known, false))
}

func TestOverlapsFindsWitness(t *testing.T) {
	allowed, _ := specifier.Parse(">=1.0,<4.0")
	vulnerable := specifier.AffectedUnion{mustParseSpec(t, "<3.0")}
	known := versions(t, "1.0", "2.5", "3.5")
	r := Overlaps(allowed, vulnerable, known, nil, false)
	require.True(t, r.Overlaps)
	require.Len(t, r.Witnesses, 2)
	assert.Equal(t, "1.0", r.Witnesses[0].String())
	assert.Equal(t, "2.5", r.Witnesses[1].String())
}

func TestOverlapsExcludesYanked(t *testing.T) {
	allowed, _ := specifier.Parse(">=1.0")
	vulnerable := specifier.AffectedUnion{mustParseSpec(t, "<3.0")}
	known := versions(t, "1.0", "2.0")
	yanked := map[string]bool{"1.0": true}
	r := Overlaps(allowed, vulnerable, known, yanked, false)
	require.True(t, r.Overlaps)
	require.Len(t, r.Witnesses, 1)
	assert.Equal(t, "2.0", r.Witnesses[0].String())
}

func TestOverlapsNoneWhenDisjoint(t *testing.T) {
	allowed, _ := specifier.Parse(">=4.0")
	vulnerable := specifier.AffectedUnion{mustParseSpec(t, "<3.0")}
	known := versions(t, "1.0", "2.0", "4.5")
	r := Overlaps(allowed, vulnerable, known, nil, false)
	assert.False(t, r.Overlaps)
	assert.Empty(t, r.Witnesses)
}

func TestOverlapsExcludesPrereleaseByDefault(t *testing.T) {
	allowed, _ := specifier.Parse(">=1.0")
	vulnerable := specifier.AffectedUnion{mustParseSpec(t, "<3.0")}
	known := versions(t, "2.0a1")
	r := Overlaps(allowed, vulnerable, known, nil, false)
	assert.False(t, r.Overlaps)
}

func TestOverlapsAdmitsPrereleaseWhenAllowedEnvelopeNamesOne(t *testing.T) {
	allowed, _ := specifier.Parse(">=2.0a0")
	vulnerable := specifier.AffectedUnion{mustParseSpec(t, "<3.0")}
	known := versions(t, "2.5a1")
	r := Overlaps(allowed, vulnerable, known, nil, false)
	require.True(t, r.Overlaps)
	require.Len(t, r.Witnesses, 1)
	assert.Equal(t, "2.5a1", r.Witnesses[0].String())
}

func mustParseSpec(t *testing.T, s string) specifier.Specifier {
	t.Helper()
	sp, err := specifier.Parse(s)
	require.NoError(t, err)
	return sp
}
