package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	sentinel := errors.New("boom")
	appErr := NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, sentinel)
	wrapped := fmt.Errorf("authenticate: %w", appErr)

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected an AppError in the chain")
	}
	if got.Code != "UNAUTHORIZED" || got.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if !errors.Is(wrapped, sentinel) {
		t.Fatal("AppError must keep the underlying error reachable")
	}

	if _, ok := AsAppError(errors.New("plain")); ok {
		t.Fatal("plain errors must not match")
	}
}

func TestAppErrorMessageFallsBackWithoutCause(t *testing.T) {
	appErr := NewAppError("FORBIDDEN", "admin only", http.StatusForbidden, nil)
	if appErr.Error() != "admin only" {
		t.Fatalf("expected message fallback, got %q", appErr.Error())
	}
}
