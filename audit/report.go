package audit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/pep440"
)

// FormatOptions toggles optional fields in both the JSON and text
// renderings. When a toggle is off, the corresponding JSON key is omitted
// entirely rather than emitted with an empty value.
type FormatOptions struct {
	IncludeDescription bool
	IncludeAliases     bool
}

type jsonVulnerability struct {
	IDs           []string `json:"ids"`
	AffectedRange string   `json:"affected_range"`
	FixVersions   []string `json:"fix_versions"`
	Description   string   `json:"description,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

type jsonConstraintFinding struct {
	Name                        string            `json:"name"`
	Envelope                    string            `json:"envelope"`
	ConstraintSources           []string          `json:"constraint_sources"`
	Vulnerability               jsonVulnerability `json:"vulnerability"`
	VulnerableVersionsPermitted []string          `json:"vulnerable_versions_permitted"`
}

type jsonUnsatisfiableEnvelope struct {
	Package  string   `json:"package"`
	Envelope string   `json:"envelope"`
	Via      []string `json:"via,omitempty"`
	Unknown  bool     `json:"unknown"`
}

type jsonReport struct {
	ConstraintFindings     []jsonConstraintFinding     `json:"constraint_findings"`
	UnsatisfiableEnvelopes []jsonUnsatisfiableEnvelope `json:"unsatisfiable_envelopes"`
	MetadataCompleteness   map[string]int              `json:"transitive_metadata_completeness"`
	AdvisoryCoverage       map[string]int              `json:"advisory_coverage"`
}

// WriteJSON renders r as the canonical JSON report: top-level
// constraint_findings, unsatisfiable_envelopes, and
// transitive_metadata_completeness keys, with description/aliases
// included in each finding's vulnerability object only when opts requests
// them — omitted entirely, not emitted empty, when the toggle is off.
func (r *Report) WriteJSON(w io.Writer, opts FormatOptions) error {
	out := jsonReport{
		ConstraintFindings:     make([]jsonConstraintFinding, len(r.Findings)),
		UnsatisfiableEnvelopes: make([]jsonUnsatisfiableEnvelope, len(r.Unsatisfiable)),
	}
	for i, f := range r.Findings {
		out.ConstraintFindings[i] = jsonConstraintFinding{
			Name:                        f.Dependency.Name,
			Envelope:                    f.Dependency.Envelope.String(),
			ConstraintSources:           f.Dependency.ConstraintSources,
			Vulnerability:               newJSONVulnerability(f, opts),
			VulnerableVersionsPermitted: versionStrings(f.VulnerableVersionsPermitted),
		}
	}
	for i, u := range r.Unsatisfiable {
		var via []string
		for _, path := range u.Via {
			if len(path) > 0 {
				via = append(via, path[len(path)-1])
			}
		}
		out.UnsatisfiableEnvelopes[i] = jsonUnsatisfiableEnvelope{
			Package:  u.Package,
			Envelope: u.Envelope.String(),
			Via:      via,
			Unknown:  u.IsUnknown,
		}
	}
	out.MetadataCompleteness = r.MetadataCoverage.ToMap()
	out.AdvisoryCoverage = r.AdvisoryCoverage.ToMap()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newJSONVulnerability(f model.ConstraintFinding, opts FormatOptions) jsonVulnerability {
	v := jsonVulnerability{
		IDs:           f.IDs,
		AffectedRange: f.AffectedRangeDisplay(),
		FixVersions:   f.FixVersions,
	}
	if opts.IncludeDescription {
		v.Description = f.Description
	}
	if opts.IncludeAliases {
		v.Aliases = f.Aliases
	}
	return v
}

func versionStrings(vs pep440.Versions) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// WriteText renders r as a plain-text report, used by the CLI for
// --format=text (the default) and for any format other than json.
func (r *Report) WriteText(w io.Writer, opts FormatOptions) error {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No known vulnerabilities overlap the resolved constraint envelopes.")
	}
	for _, f := range r.Findings {
		fmt.Fprintf(w, "%s: allowed %s overlaps advisory range %s\n", f.Dependency.Name, f.Dependency.Envelope.String(), f.AffectedRangeDisplay())
		fmt.Fprintf(w, "  advisories: %v\n", f.IDs)
		if opts.IncludeAliases && len(f.Aliases) > 0 {
			fmt.Fprintf(w, "  aliases: %v\n", f.Aliases)
		}
		if opts.IncludeDescription && f.Description != "" {
			fmt.Fprintf(w, "  description: %s\n", f.Description)
		}
		if len(f.FixVersions) > 0 {
			fmt.Fprintf(w, "  fix versions: %v\n", f.FixVersions)
		}
		witnesses := make([]string, len(f.VulnerableVersionsPermitted))
		for i, v := range f.VulnerableVersionsPermitted {
			witnesses[i] = v.String()
		}
		fmt.Fprintf(w, "  witness versions: %v\n", witnesses)
	}
	for _, u := range r.Unsatisfiable {
		if u.IsUnknown {
			fmt.Fprintf(w, "%s: envelope %s satisfiability unknown (package catalog unavailable)\n", u.Package, u.Envelope.String())
		} else {
			fmt.Fprintf(w, "%s: envelope %s is unsatisfiable against known releases\n", u.Package, u.Envelope.String())
		}
	}
	return nil
}
