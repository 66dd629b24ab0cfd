package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNewAndIs(t *testing.T) {
	err := New(ErrCodeInvalidRecord, "entity %d: missing %s", 3, "label")

	if !Is(err, ErrCodeInvalidRecord) {
		t.Error("Is() should match the assigned code")
	}
	if Is(err, ErrCodeVersionMismatch) {
		t.Error("Is() should not match a different code")
	}
	if got, want := err.Error(), "INVALID_RECORD: entity 3: missing label"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeCache, cause, "load layout %s", "abc")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	if got := GetCode(err); got != ErrCodeCache {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeCache)
	}
}

func TestIsThroughWrappedChain(t *testing.T) {
	inner := New(ErrCodeMissingEndpoint, "relation r7: target e5 not found")
	outer := fmt.Errorf("batch 12: %w", inner)

	if !Is(outer, ErrCodeMissingEndpoint) {
		t.Error("Is() should find the code through fmt.Errorf wrapping")
	}
	if got := GetCode(outer); got != ErrCodeMissingEndpoint {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeMissingEndpoint)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"structured", New(ErrCodeInvalidInput, "bad batch"), "bad batch"},
		{"plain", stderrors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
