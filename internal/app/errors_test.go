package app

import (
	"errors"
	"testing"
)

func TestComponentError_Error(t *testing.T) {
	base := errors.New("disk full")
	tests := []struct {
		name     string
		err      *ComponentError
		expected string
	}{
		{"full", NewComponentError("store", "save", base), "store: save: disk full"},
		{"no err", NewComponentError("store", "save", nil), "store: save"},
		{"no action", NewComponentError("store", "", base), "store: disk full"},
		{"component only", NewComponentError("store", "", nil), "store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}

	var nilErr *ComponentError
	if nilErr.Error() != "" {
		t.Error("expected empty string for nil receiver")
	}
}

func TestComponentError_Unwrap(t *testing.T) {
	err := NewComponentError("loop", "start", ErrShutdown)
	if !errors.Is(err, ErrShutdown) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	var nilErr *ComponentError
	if nilErr.Unwrap() != nil {
		t.Error("expected nil unwrap for nil receiver")
	}
}

func TestErrorList(t *testing.T) {
	var list ErrorList
	if list.AsError() != nil {
		t.Error("expected nil for empty list")
	}

	list.Add(nil)
	list.Add(ErrNoSession)
	if list.Error() != ErrNoSession.Error() {
		t.Errorf("expected single error message, got %q", list.Error())
	}

	list.Add(NewComponentError("store", "close", errors.New("busy")))
	err := list.AsError()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "2 errors: first: no debug session" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrNoSession) {
		t.Error("expected errors.Is to search the list")
	}
	var cerr *ComponentError
	if !errors.As(err, &cerr) || cerr.Component != "store" {
		t.Error("expected errors.As to find the component error")
	}

	errs := list.Errors()
	errs[0] = nil
	if list.Errors()[0] == nil {
		t.Error("expected Errors to return a copy")
	}
}
