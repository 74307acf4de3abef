package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", Validation("bad price"), CodeValidation},
		{"not found", NotFound("missing"), CodeNotFound},
		{"conflict", Conflict("duplicate"), CodeConflict},
		{"storage", Storage("write failed", errors.New("disk full")), CodeStorage},
		{"domain", Domain("stock would go negative"), CodeDomain},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("missing")), CodeNotFound},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("write failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestError_WithDetails(t *testing.T) {
	err := Validation("validation failed").WithDetails(map[string]interface{}{"field": "price"})

	if err.Details["field"] != "price" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
