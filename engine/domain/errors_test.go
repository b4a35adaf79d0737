package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrUserNotFound, true},
		{ErrTransactionNotFound, true},
		{ErrNoPath, true},
		{fmt.Errorf("lookup: %w", ErrUserNotFound), true},
		{errors.New("something else"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := NotFound(tt.err); got != tt.want {
			t.Errorf("NotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("email", ErrMissingField)
	if !IsValidation(err) {
		t.Fatal("IsValidation should match")
	}
	if !errors.Is(err, ErrMissingField) {
		t.Fatal("should unwrap to the sentinel")
	}
	if IsValidation(errors.New("plain")) {
		t.Fatal("plain errors are not validation errors")
	}
	// Wrapping elsewhere in a chain still matches.
	wrapped := fmt.Errorf("handler: %w", err)
	if !IsValidation(wrapped) {
		t.Fatal("wrapped validation error should still match")
	}
}

func TestStoreError(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewStoreError("create user", inner)
	if !errors.Is(err, inner) {
		t.Fatal("should unwrap to the cause")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "create user" {
		t.Fatalf("wrong StoreError: %v", err)
	}
}
