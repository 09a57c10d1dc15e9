package model

import (
	"regexp"
	"strings"
)

var nameSeparatorRun = regexp.MustCompile(`[-_.]+`)

// CanonicalName normalizes a package name per PEP 503: lowercase, with
// runs of '-', '_', and '.' collapsed to a single '-'. Two differently
// styled spellings of the same package ("Flask_SQLAlchemy", "flask-
// sqlalchemy") canonicalize to the same key, which is what lets the
// constraint graph treat them as the same node.
func CanonicalName(name string) string {
	return strings.ToLower(nameSeparatorRun.ReplaceAllString(name, "-"))
}
