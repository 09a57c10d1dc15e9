package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMetadataStatsValidatePartition(t *testing.T) {
	s := MetadataStats{
		VersionsExamined:            10,
		VersionsWithRequiresDist:    6,
		VersionsNoMetadataAvailable: 2,
		VersionsFetchFailed:         1,
		VersionsParseFailed:         1,
	}
	assert.NoError(t, s.Validate())
}

func TestMetadataStatsValidateRejectsMismatch(t *testing.T) {
	s := MetadataStats{VersionsExamined: 10, VersionsWithRequiresDist: 3}
	assert.Error(t, s.Validate())
}

func TestMetadataStatsToMap(t *testing.T) {
	s := MetadataStats{VersionsExamined: 4, VersionsWithRequiresDist: 4}
	m := s.ToMap()
	assert.Equal(t, 4, m["versions_examined"])
	assert.Equal(t, 4, m["versions_with_requires_dist"])
}

func TestMetadataCoverageToMap(t *testing.T) {
	c := MetadataCoverage{
		MetadataStats:            MetadataStats{VersionsExamined: 4, VersionsWithRequiresDist: 4},
		PackagesTotal:            2,
		PackagesWithRequiresDist: 1,
	}
	m := c.ToMap()
	assert.Equal(t, 4, m["versions_examined"])
	assert.Equal(t, 2, m["packages_total"])
	assert.Equal(t, 1, m["packages_with_requires_dist"])
}

func TestAdvisoryCoverageToMap(t *testing.T) {
	c := AdvisoryCoverage{PackagesQueried: 5, PackagesWithAdvisories: 2, AdvisoriesExamined: 3, QueryErrors: 1}
	m := c.ToMap()
	assert.Equal(t, 5, m["packages_queried"])
	assert.Equal(t, 1, m["query_errors"])
}

func TestMetadataStatsAccumulationMatchesExpected(t *testing.T) {
	got := MetadataStats{}
	parts := []MetadataStats{
		{VersionsExamined: 2, VersionsWithRequiresDist: 2},
		{VersionsExamined: 3, VersionsNoMetadataAvailable: 3},
	}
	for _, p := range parts {
		got.VersionsExamined += p.VersionsExamined
		got.VersionsWithRequiresDist += p.VersionsWithRequiresDist
		got.VersionsNoMetadataAvailable += p.VersionsNoMetadataAvailable
		got.VersionsFetchFailed += p.VersionsFetchFailed
		got.VersionsParseFailed += p.VersionsParseFailed
	}
	want := MetadataStats{VersionsExamined: 5, VersionsWithRequiresDist: 2, VersionsNoMetadataAvailable: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("accumulated stats mismatch (-want +got):\n%s", diff)
	}
}
