// Run with: go test ./internal/apperror/ -v
package apperror

import (
	"errors"
	"io/fs"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("lesson", "basics/01_hello"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("identifier", "identifier is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "PersistenceFailed wraps ErrPersistence",
			err:       PersistenceFailed("append", fs.ErrPermission),
			target:    ErrPersistence,
			wantMatch: true,
		},
		{
			name:      "PersistenceFailed also matches its cause",
			err:       PersistenceFailed("append", fs.ErrPermission),
			target:    fs.ErrPermission,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("token expired"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("lesson", "basics/01_hello"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrPersistence",
			err:       ValidationFailed("mode", "unknown mode"),
			target:    ErrPersistence,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("lesson", "basics/01_hello"),
			wantMessage: "lesson not found with id basics/01_hello",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("identifier", "identifier is required"),
			wantMessage: "identifier is required",
		},
		{
			name:        "PersistenceFailed appends the cause",
			err:         PersistenceFailed("load", errors.New("disk full")),
			wantMessage: "history load failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	// Handlers use errors.As to pull the message out of a wrapped chain.
	wrapped := errors.Join(errors.New("dispatching"), ValidationFailed("mode", "unknown mode \"cloud\""))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Field != "mode" {
		t.Errorf("Field = %q, want %q", appErr.Field, "mode")
	}
}
