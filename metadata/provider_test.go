package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depscan/rangeaudit/pep440"
)

func TestStaticProviderReturnsFixture(t *testing.T) {
	p := &StaticProvider{
		Packages: map[string]PackageMetadata{
			"requests": {
				Name: "requests",
				Versions: []VersionMetadata{
					{Version: pep440.MustParse("2.31.0"), RequiresDist: []string{"urllib3>=1.21.1"}, Available: true},
					{Version: pep440.MustParse("2.25.0"), Available: false},
				},
			},
		},
	}

	pm, stats, err := p.GetMetadata(context.Background(), "requests")
	require.NoError(t, err)
	assert.Len(t, pm.Versions, 2)
	assert.Equal(t, 2, stats.VersionsExamined)
	assert.Equal(t, 1, stats.VersionsWithRequiresDist)
	assert.Equal(t, 1, stats.VersionsNoMetadataAvailable)
	require.NoError(t, stats.Validate())
}

func TestStaticProviderUnknownPackageIsEmpty(t *testing.T) {
	p := &StaticProvider{Packages: map[string]PackageMetadata{}}
	pm, stats, err := p.GetMetadata(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, pm.Versions)
	assert.Equal(t, 0, stats.VersionsExamined)
}

func TestStaticProviderPropagatesConfiguredError(t *testing.T) {
	boom := assert.AnError
	p := &StaticProvider{Errors: map[string]error{"flask": boom}}
	_, _, err := p.GetMetadata(context.Background(), "flask")
	assert.ErrorIs(t, err, boom)
}

func TestPackageMetadataYankedSet(t *testing.T) {
	pm := PackageMetadata{
		Versions: []VersionMetadata{
			{Version: pep440.MustParse("1.0"), Yanked: true},
			{Version: pep440.MustParse("2.0")},
		},
	}
	yanked := pm.YankedSet()
	assert.True(t, yanked["1.0"])
	assert.False(t, yanked["2.0"])
}
