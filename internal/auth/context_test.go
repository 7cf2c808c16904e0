// ABOUTME: Unit tests for authentication context helpers
// ABOUTME: Tests subject propagation through context.Context

package auth

import (
	"context"
	"testing"
)

func TestSubjectFromContext(t *testing.T) {
	if _, ok := SubjectFromContext(context.Background()); ok {
		t.Error("expected no subject on empty context")
	}

	ctx := WithSubject(context.Background(), "admin@example.org")
	got, ok := SubjectFromContext(ctx)
	if !ok || got != "admin@example.org" {
		t.Errorf("SubjectFromContext() = %q, %v", got, ok)
	}

	if _, ok := SubjectFromContext(WithSubject(context.Background(), "")); ok {
		t.Error("empty subject should not count as authenticated")
	}
}
