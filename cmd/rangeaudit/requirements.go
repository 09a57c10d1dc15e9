package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/depscan/rangeaudit/builder"
	"github.com/depscan/rangeaudit/model"
	"github.com/depscan/rangeaudit/rangeerr"
)

// readRequirements reads a minimal requirements file: one PEP 508
// requirement per line, blank lines and `#`-prefixed comments ignored.
// This is deliberately not a full pip requirements-file parser (it does
// not follow -r includes, -e editable installs, or environment markers
// beyond what builder.ParseRequirement already understands) — the
// dependency-file reading surface pip-audit itself covers is out of
// scope here; this exists only to drive the analyzer end to end from a
// real file.
func readRequirements(path string) ([]model.Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rangeerr.InvalidInput("open requirements file "+path, err)
	}
	defer f.Close()

	var reqs []model.Requirement
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req, err := builder.ParseRequirement(line)
		if err != nil {
			return nil, rangeerr.InvalidInput("parse requirement line "+line, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, rangeerr.InvalidInput("read requirements file "+path, err)
	}
	return reqs, nil
}
