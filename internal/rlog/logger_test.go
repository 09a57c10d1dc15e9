package rlog

import (
	"context"
	"testing"
)

// dlog falls back to a baseline logger when no logger has been attached to
// the context, so these calls only need to not panic.
func TestLoggerDoesNotPanicWithoutAttachedLogger(t *testing.T) {
	ctx := context.Background()
	l := New(ctx)
	l.Logln("starting", "audit")
	l.Logf("examined %d packages", 3)
	l.Debugf("cache miss for %s", "requests")
	l.Errorf("advisory lookup failed: %v", "timeout")
}

func TestWithFieldReturnsUsableContext(t *testing.T) {
	ctx := WithField(context.Background(), "package", "requests")
	l := New(ctx)
	l.Logln("checking constraint envelope")
}
