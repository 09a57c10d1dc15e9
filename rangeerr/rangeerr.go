// Package rangeerr defines the error taxonomy shared across the analyzer:
// a small set of sentinel kinds that callers can test for with errors.Is,
// each constructor wrapping the underlying cause with github.com/pkg/errors
// so a CLI-level handler can print a stack trace on request without every
// call site needing to build one by hand.
package rangeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Wrapped errors returned by this package's
// constructors satisfy errors.Is against exactly one of these.
var (
	// ErrInvalidInput covers malformed CLI input: a dependency file that
	// does not parse, a project manifest missing a required field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidVersion covers a version string that fails PEP 440 parsing.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidSpecifier covers a specifier clause that fails parsing.
	ErrInvalidSpecifier = errors.New("invalid specifier")

	// ErrProviderUnavailable covers a metadata provider that could not be
	// reached or returned an unusable response for a package.
	ErrProviderUnavailable = errors.New("metadata provider unavailable")

	// ErrAdvisoryUnavailable covers an advisory service that could not be
	// reached or returned an unusable response for a package.
	ErrAdvisoryUnavailable = errors.New("advisory service unavailable")
)

// InvalidInput wraps cause (which may be nil) as ErrInvalidInput with msg
// as additional context.
func InvalidInput(msg string, cause error) error {
	return wrap(ErrInvalidInput, msg, cause)
}

// InvalidVersion wraps cause as ErrInvalidVersion, naming the offending
// input string.
func InvalidVersion(input string, cause error) error {
	return wrap(ErrInvalidVersion, fmt.Sprintf("parse version %q", input), cause)
}

// InvalidSpecifier wraps cause as ErrInvalidSpecifier, naming the
// offending input string.
func InvalidSpecifier(input string, cause error) error {
	return wrap(ErrInvalidSpecifier, fmt.Sprintf("parse specifier %q", input), cause)
}

// ProviderUnavailable wraps cause as ErrProviderUnavailable, naming the
// package the lookup was for.
func ProviderUnavailable(pkg string, cause error) error {
	return wrap(ErrProviderUnavailable, fmt.Sprintf("metadata for %q", pkg), cause)
}

// AdvisoryUnavailable wraps cause as ErrAdvisoryUnavailable, naming the
// package the lookup was for.
func AdvisoryUnavailable(pkg string, cause error) error {
	return wrap(ErrAdvisoryUnavailable, fmt.Sprintf("advisories for %q", pkg), cause)
}

func wrap(sentinel error, msg string, cause error) error {
	if cause == nil {
		return errors.Wrap(sentinel, msg)
	}
	return errors.Wrap(sentinel, fmt.Sprintf("%s: %v", msg, cause))
}

// StackTracer is implemented by errors produced via github.com/pkg/errors,
// including everything this package returns. A CLI-level handler can type
// -assert for it to print a trace under a verbose flag without every
// intermediate layer needing to know about stack traces at all.
type StackTracer interface {
	StackTrace() errors.StackTrace
}
