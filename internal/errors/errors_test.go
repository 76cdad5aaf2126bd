package errors

import (
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrCodeConflict, "already decided")
	if got, want := err.Error(), "conflict: already decided"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(fmt.Errorf("connection refused"), ErrCodeUnavailable, "dial failed")
	if got := wrapped.Error(); got != "unavailable: dial failed: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"coded error", New(ErrCodeStaleApproval, "x"), ErrCodeStaleApproval},
		{"wrapped coded error", fmt.Errorf("outer: %w", New(ErrCodeNotFound, "x")), ErrCodeNotFound},
		{"plain error", fmt.Errorf("boom"), ErrCodeInternal},
		{"nil-ish plain", fmt.Errorf(""), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeDirectoryUnavailable, "directory down")
	outer := Wrap(inner, ErrCodeInternal, "initialize failed")

	if !HasCode(outer, ErrCodeDirectoryUnavailable) {
		t.Error("HasCode() missed nested code")
	}
	if !HasCode(outer, ErrCodeInternal) {
		t.Error("HasCode() missed outer code")
	}
	if HasCode(outer, ErrCodeConflict) {
		t.Error("HasCode() matched absent code")
	}
	if HasCode(nil, ErrCodeInternal) {
		t.Error("HasCode(nil) = true")
	}
}

func TestConstructors(t *testing.T) {
	nf := NotFound("approval", "ap-1")
	if nf.Code != ErrCodeNotFound || nf.Message != "approval not found: ap-1" {
		t.Errorf("NotFound() = %+v", nf)
	}

	ii := InvalidInput("status", "must be approved or rejected")
	if ii.Code != ErrCodeInvalidInput {
		t.Errorf("InvalidInput() code = %q", ii.Code)
	}
}
