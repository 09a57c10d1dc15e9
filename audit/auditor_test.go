package audit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depscan/rangeaudit/advisory"
	"github.com/depscan/rangeaudit/metadata"
	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/pep440"
	"github.com/depscan/rangeaudit/rangekey"
	"github.com/depscan/rangeaudit/specifier"
)

func spec(t *testing.T, s string) specifier.Specifier {
	t.Helper()
	sp, err := specifier.Parse(s)
	require.NoError(t, err)
	return sp
}

func TestAuditFindsOverlappingAdvisory(t *testing.T) {
	metaProvider := &metadata.StaticProvider{
		Packages: map[string]metadata.PackageMetadata{
			"jinja2": {
				Name: "jinja2",
				Versions: []metadata.VersionMetadata{
					{Version: pep440.MustParse("3.0.0"), Available: true},
					{Version: pep440.MustParse("3.1.6"), Available: true},
				},
			},
		},
	}

	affected, key, err := rangekey.Normalize([]rangekey.Event{rangekey.Introduced("0"), rangekey.Fixed("3.1.3")})
	require.NoError(t, err)

	advisories := &advisory.StaticService{
		ByPackage: map[string][]advisory.Advisory{
			"jinja2": {{
				ID:            "GHSA-1234",
				Aliases:       []string{"CVE-2024-0001"},
				Summary:       "example summary",
				AffectedRange: affected,
				RangeKey:      key,
				FixVersions:   []string{"3.1.3"},
			}},
		},
	}

	a := NewRangeAuditor(metaProvider, advisories, Options{MaxDepth: 5})
	report, err := a.Audit(context.Background(), []model.Requirement{{Name: "jinja2", Specifier: spec(t, ">=2.0")}})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	finding := report.Findings[0]
	assert.Equal(t, "jinja2", finding.Dependency.Name)
	assert.Contains(t, finding.IDs, "GHSA-1234")
	assert.Contains(t, finding.Aliases, "CVE-2024-0001")
	assert.Equal(t, "example summary", finding.Description)
	assert.Equal(t, []string{"3.1.3"}, finding.FixVersions)
	require.Len(t, finding.VulnerableVersionsPermitted, 1)
	assert.Equal(t, "3.0.0", finding.VulnerableVersionsPermitted[0].String())
}

func TestAuditNoFindingWhenEnvelopeExcludesVulnerableVersions(t *testing.T) {
	metaProvider := &metadata.StaticProvider{
		Packages: map[string]metadata.PackageMetadata{
			"jinja2": {
				Name: "jinja2",
				Versions: []metadata.VersionMetadata{
					{Version: pep440.MustParse("3.1.6"), Available: true},
				},
			},
		},
	}
	affected, key, err := rangekey.Normalize([]rangekey.Event{rangekey.Introduced("0"), rangekey.Fixed("3.1.3")})
	require.NoError(t, err)

	advisories := &advisory.StaticService{
		ByPackage: map[string][]advisory.Advisory{
			"jinja2": {{ID: "GHSA-1234", AffectedRange: affected, RangeKey: key}},
		},
	}

	a := NewRangeAuditor(metaProvider, advisories, Options{MaxDepth: 5})
	report, err := a.Audit(context.Background(), []model.Requirement{{Name: "jinja2", Specifier: spec(t, ">=3.1.3")}})
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestAuditGroupsAdvisoriesByRangeKey(t *testing.T) {
	metaProvider := &metadata.StaticProvider{
		Packages: map[string]metadata.PackageMetadata{
			"jinja2": {
				Name: "jinja2",
				Versions: []metadata.VersionMetadata{
					{Version: pep440.MustParse("3.0.0"), Available: true},
				},
			},
		},
	}
	affected, key, err := rangekey.Normalize([]rangekey.Event{rangekey.Introduced("0"), rangekey.Fixed("3.1.3")})
	require.NoError(t, err)

	advisories := &advisory.StaticService{
		ByPackage: map[string][]advisory.Advisory{
			"jinja2": {
				{ID: "GHSA-1111", Aliases: []string{"CVE-aaaa"}, AffectedRange: affected, RangeKey: key},
				{ID: "PYSEC-2222", AffectedRange: affected, RangeKey: key},
			},
		},
	}

	a := NewRangeAuditor(metaProvider, advisories, Options{MaxDepth: 5})
	report, err := a.Audit(context.Background(), []model.Requirement{{Name: "jinja2", Specifier: spec(t, ">=2.0")}})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	finding := report.Findings[0]
	assert.ElementsMatch(t, []string{"GHSA-1111", "PYSEC-2222"}, finding.IDs)
	assert.Contains(t, finding.Aliases, "CVE-aaaa")
}

func TestAuditCoverageCountsQueryErrors(t *testing.T) {
	metaProvider := &metadata.StaticProvider{
		Packages: map[string]metadata.PackageMetadata{
			"flask": {Name: "flask", Versions: []metadata.VersionMetadata{{Version: pep440.MustParse("1.0"), Available: true}}},
		},
	}
	advisories := &advisory.StaticService{Errors: map[string]error{"flask": assert.AnError}}
	a := NewRangeAuditor(metaProvider, advisories, Options{MaxDepth: 5})
	report, err := a.Audit(context.Background(), []model.Requirement{{Name: "flask", Specifier: spec(t, ">=1.0")}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.AdvisoryCoverage.QueryErrors)
	assert.Equal(t, 1, report.AdvisoryCoverage.PackagesQueried)
}

func TestAuditMetadataCoverageReportsPackageTotals(t *testing.T) {
	metaProvider := &metadata.StaticProvider{
		Packages: map[string]metadata.PackageMetadata{
			"flask": {
				Name: "flask",
				Versions: []metadata.VersionMetadata{
					{Version: pep440.MustParse("1.0"), Available: true, RequiresDist: []string{"werkzeug>=1.0"}},
				},
			},
			"werkzeug": {
				Name:     "werkzeug",
				Versions: []metadata.VersionMetadata{{Version: pep440.MustParse("1.0"), Available: true}},
			},
		},
	}
	advisories := &advisory.StaticService{}
	a := NewRangeAuditor(metaProvider, advisories, Options{MaxDepth: 5})
	report, err := a.Audit(context.Background(), []model.Requirement{{Name: "flask", Specifier: spec(t, ">=1.0")}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.MetadataCoverage.PackagesTotal)
	assert.Equal(t, 1, report.MetadataCoverage.PackagesWithRequiresDist)
	require.NoError(t, report.MetadataCoverage.Validate())
}

func sampleReport(t *testing.T) *Report {
	affected, key, err := rangekey.Normalize([]rangekey.Event{rangekey.Introduced("0"), rangekey.Fixed("3.1.3")})
	require.NoError(t, err)
	return &Report{
		Findings: []model.ConstraintFinding{{
			Dependency: model.ConstrainedDependency{
				Name:              "jinja2",
				Envelope:          spec(t, ">=2.0"),
				ConstraintSources: []string{"<project>"},
			},
			IDs:                         []string{"GHSA-1234"},
			Description:                 "example summary",
			Aliases:                     []string{"CVE-2024-0001"},
			AffectedRange:               affected,
			FixVersions:                 []string{"3.1.3"},
			RangeKeyText:                key.String(),
			VulnerableVersionsPermitted: pep440.Versions{pep440.MustParse("3.0.0")},
		}},
		MetadataCoverage: model.MetadataCoverage{PackagesTotal: 1},
		AdvisoryCoverage: model.AdvisoryCoverage{PackagesQueried: 1, PackagesWithAdvisories: 1, AdvisoriesExamined: 1},
	}
}

func TestWriteJSONProducesCanonicalSchema(t *testing.T) {
	r := sampleReport(t)
	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf, FormatOptions{}))
	body := buf.String()

	assert.Contains(t, body, `"constraint_findings"`)
	assert.Contains(t, body, `"unsatisfiable_envelopes"`)
	assert.Contains(t, body, `"transitive_metadata_completeness"`)
	assert.Contains(t, body, `"ids"`)
	assert.Contains(t, body, `"GHSA-1234"`)
	assert.NotContains(t, body, `"description"`)
	assert.NotContains(t, body, `"aliases"`)
}

func TestWriteJSONIncludesDescriptionAndAliasesWhenToggled(t *testing.T) {
	r := sampleReport(t)
	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf, FormatOptions{IncludeDescription: true, IncludeAliases: true}))
	body := buf.String()

	assert.Contains(t, body, `"description": "example summary"`)
	assert.Contains(t, body, `"aliases"`)
	assert.Contains(t, body, `"CVE-2024-0001"`)
}

func TestWriteTextNoFindings(t *testing.T) {
	r := &Report{}
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, FormatOptions{}))
	assert.Contains(t, buf.String(), "No known vulnerabilities")
}
