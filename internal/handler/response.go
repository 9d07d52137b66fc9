// Package handler is the HTTP edge of the lesson runner: it decodes requests,
// calls the service layer and encodes results. It holds no business rules.
package handler

// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//   {"error": "not_found", "message": "lesson not found with id basics/99"}
//
// A run whose history write failed is the one exception that carries a result
// too: the lesson did run, so the caller still gets its output.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/executor"
)

// maxBodyBytes bounds request bodies. Lesson sources sent to /api/execute are
// the largest thing a client posts.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Field   string                    `json:"field,omitempty"`
	Result  *executor.ExecutionResult `json:"result,omitempty"`
}

// writeJSON sends a JSON response. Headers and status go out before the body;
// anything set after the first Write is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are rejected so
// typos like "timeout" instead of "timeoutSeconds" do not pass silently.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// errorStatus maps the domain error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrPersistence):
		return http.StatusInternalServerError, "persistence_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError sends err with the mapped status. Only AppError messages reach the
// client; anything else might carry paths or SQL and gets a generic message.
func writeError(w http.ResponseWriter, err error) {
	writeErrorWithResult(w, err, nil)
}

func writeErrorWithResult(w http.ResponseWriter, err error, res *executor.ExecutionResult) {
	status, kind := errorStatus(err)
	body := ErrorResponse{
		Error:   kind,
		Message: "An internal error occurred",
		Result:  res,
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Field = appErr.Field
	} else {
		slog.Error("unhandled error", slog.String("error", err.Error()))
	}
	writeJSON(w, status, body)
}
