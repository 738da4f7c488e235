package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("approve task: %w", State("task 3 is approved"))
	if got := KindOf(err); got != KindState {
		t.Errorf("kind = %q, want %q", got, KindState)
	}
	if !Is(err, KindState) {
		t.Error("expected Is(err, KindState)")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindStorage {
		t.Errorf("kind = %q, want %q", got, KindStorage)
	}
	if Is(nil, KindStorage) {
		t.Error("nil error should not match any kind")
	}
}

func TestStorageUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("insert task", cause)
	if !errors.Is(err, cause) {
		t.Error("expected storage error to unwrap to its cause")
	}
	if err.Error() != "insert task: disk full" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestInsufficientBalanceMessage(t *testing.T) {
	err := InsufficientBalance(500, 600)
	want := "insufficient allowance balance: have 500, need 600"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
