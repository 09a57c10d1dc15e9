package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/specifier"
)

// requirementPattern parses a PEP 508 requirement string such as
// `urllib3 (>=1.21.1,<3); extra == "socks"` or `idna>=2.5,<4`.
var requirementPattern = regexp.MustCompile(`(?s)^\s*` +
	`(?P<name>[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)` +
	`\s*(?:\[\s*(?P<extras>[^\]]*?)\s*\])?` +
	`\s*(?P<specifier>[^;]*?)` +
	`\s*(?:;\s*(?P<marker>.*))?$`)

// ParseRequirement parses a single raw requires_dist entry into a
// model.Requirement, normalizing the package name per PEP 503.
func ParseRequirement(raw string) (model.Requirement, error) {
	m := requirementPattern.FindStringSubmatch(raw)
	if m == nil {
		return model.Requirement{}, fmt.Errorf("unparseable requirement %q", raw)
	}
	names := requirementPattern.SubexpNames()
	get := func(n string) string {
		for i, name := range names {
			if name == n && i < len(m) {
				return m[i]
			}
		}
		return ""
	}

	specStr := strings.TrimSpace(get("specifier"))
	specStr = strings.Trim(specStr, "() ")
	spec, err := specifier.Parse(specStr)
	if err != nil {
		return model.Requirement{}, fmt.Errorf("requirement %q: %w", raw, err)
	}

	var extras []string
	if e := get("extras"); e != "" {
		for _, part := range strings.Split(e, ",") {
			if p := strings.TrimSpace(part); p != "" {
				extras = append(extras, p)
			}
		}
	}

	name := get("name")
	if name == "" {
		return model.Requirement{}, fmt.Errorf("requirement %q has no package name", raw)
	}

	return model.Requirement{
		Name:      model.CanonicalName(name),
		Specifier: spec,
		Extras:    extras,
		RawMarker: strings.TrimSpace(get("marker")),
	}, nil
}

// ShouldSkip reports whether req should not be traversed: this module
// does not evaluate PEP 508 environment markers, so a requirement gated on
// a specific extra being selected (`extra == "socks"`) is conservatively
// skipped rather than assumed-active, matching the "extras/markers are not
// evaluated" non-goal.
func ShouldSkip(req model.Requirement) bool {
	if req.RawMarker == "" {
		return false
	}
	marker := strings.ReplaceAll(req.RawMarker, " ", "")
	return strings.Contains(marker, "extra==")
}
