package metadata

import (
	"context"

	"github.com/depscan/rangeaudit/model"
)

// StaticProvider is a Provider backed by an in-memory fixture, used by
// tests that exercise the constraint graph builder without a network.
type StaticProvider struct {
	Packages map[string]PackageMetadata
	// Errors, if set for a package name, is returned instead of a lookup.
	Errors map[string]error
}

// GetMetadata implements Provider.
func (s *StaticProvider) GetMetadata(_ context.Context, name string) (PackageMetadata, model.MetadataStats, error) {
	if err, ok := s.Errors[name]; ok {
		return PackageMetadata{}, model.MetadataStats{}, err
	}
	pm, ok := s.Packages[name]
	if !ok {
		return PackageMetadata{Name: name}, model.MetadataStats{}, nil
	}
	stats := model.MetadataStats{VersionsExamined: len(pm.Versions)}
	for _, v := range pm.Versions {
		switch {
		case v.Available && len(v.RequiresDist) > 0:
			stats.VersionsWithRequiresDist++
		default:
			stats.VersionsNoMetadataAvailable++
		}
	}
	return pm, stats, nil
}
