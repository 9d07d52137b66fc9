package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-runner/internal/executor"
)

// Dispatcher is the part of the service layer that runs requests.
type Dispatcher interface {
	Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error)
}

// ExecuteHandler runs a raw ExecutionRequest posted by the client.
type ExecuteHandler struct {
	dispatcher Dispatcher
	maxTimeout int
	logger     *slog.Logger
}

// NewExecuteHandler creates an ExecuteHandler. maxTimeoutSeconds caps what a
// client may ask for; zero means no cap.
func NewExecuteHandler(dispatcher Dispatcher, maxTimeoutSeconds int, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		dispatcher: dispatcher,
		maxTimeout: maxTimeoutSeconds,
		logger:     logger,
	}
}

// HandleExecute serves POST /api/execute.
//
// A failed lesson is still 200: the run happened and the body says how it went.
// Only a bad request (400) or a history write failure (500) change the status.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if err := checkTimeout(req.TimeoutSeconds, h.maxTimeout); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.dispatcher.Execute(r.Context(), req)
	respondRun(w, h.logger, res, err)
}

// respondRun writes the outcome of a dispatch.
func respondRun(w http.ResponseWriter, logger *slog.Logger, res *executor.ExecutionResult, err error) {
	if err != nil {
		if res != nil {
			logger.Error("lesson ran but history was not saved", slog.String("error", err.Error()))
		}
		writeErrorWithResult(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
