package assert

import (
	"errors"
	"strings"
	"testing"
)

func recovered(fn func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg, _ = r.(string)
		}
	}()
	fn()
	return ""
}

func TestAssertHolds(t *testing.T) {
	if got := recovered(func() { Assert(true, "never") }); got != "" {
		t.Fatalf("expected no panic, got %q", got)
	}
	if got := recovered(func() { AssertNil(nil, "never") }); got != "" {
		t.Fatalf("expected no panic, got %q", got)
	}
}

func TestAssertPanics(t *testing.T) {
	if got := recovered(func() { Assert(false, "[TEST] broken") }); got != "[TEST] broken" {
		t.Fatalf("unexpected panic message %q", got)
	}
	got := recovered(func() { AssertNil(errors.New("boom"), "[TEST] open") })
	if !strings.Contains(got, "[TEST] open: boom") {
		t.Fatalf("unexpected panic message %q", got)
	}
}
