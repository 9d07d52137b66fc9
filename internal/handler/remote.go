package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-runner/internal/executor/judge0"
)

// RemoteService is what the remote endpoints need from the Judge0 client.
type RemoteService interface {
	HealthCheck(ctx context.Context) bool
	ListLanguages(ctx context.Context) ([]judge0.LanguageDescriptor, error)
	BaseURL() string
}

// RemoteHandler exposes the remote execution service's status.
type RemoteHandler struct {
	remote RemoteService
	logger *slog.Logger
}

func NewRemoteHandler(remote RemoteService, logger *slog.Logger) *RemoteHandler {
	return &RemoteHandler{remote: remote, logger: logger}
}

// HandleHealth serves GET /api/remote/health. It answers 200 either way; the
// body says whether the service is reachable.
func (h *RemoteHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"baseUrl": h.remote.BaseURL(),
		"healthy": h.remote.HealthCheck(r.Context()),
	})
}

// HandleLanguages serves GET /api/remote/languages.
func (h *RemoteHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.remote.ListLanguages(r.Context())
	if err != nil {
		h.logger.Warn("listing remote languages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "remote_unavailable",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, langs)
}
