package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/export"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/progress"
	"github.com/sakif/lesson-runner/internal/service"
)

// Lessons is the slice of service.LessonService the HTTP API needs.
type Lessons interface {
	Run(ctx context.Context, category, identifier string, opts service.RunOptions) (*executor.ExecutionResult, error)
	Render(ctx context.Context, category, identifier string) (*model.Lesson, error)
	Info(ctx context.Context, category, identifier string) (*model.LessonInfo, error)
	List(ctx context.Context, category string) ([]string, error)
	Catalogue(ctx context.Context) (map[string][]string, error)
	History() []model.HistoryEntry
	Progress(ctx context.Context) (progress.Summary, error)
}

var _ Lessons = (*service.LessonService)(nil)

// LessonHandler serves the lesson, history and progress endpoints.
type LessonHandler struct {
	lessons    Lessons
	maxTimeout int
	logger     *slog.Logger
}

func NewLessonHandler(lessons Lessons, maxTimeoutSeconds int, logger *slog.Logger) *LessonHandler {
	return &LessonHandler{
		lessons:    lessons,
		maxTimeout: maxTimeoutSeconds,
		logger:     logger,
	}
}

// RunRequest is the body of POST /api/lessons/{category}/{id}/run. Every field
// is optional.
type RunRequest struct {
	Mode           string `json:"mode"`
	Stdin          string `json:"stdin"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	LanguageID     int    `json:"languageId"`
}

// HandleCatalogue serves GET /api/lessons.
func (h *LessonHandler) HandleCatalogue(w http.ResponseWriter, r *http.Request) {
	catalogue, err := h.lessons.Catalogue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogue)
}

// HandleList serves GET /api/lessons/{category}.
func (h *LessonHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.lessons.List(r.Context(), pathParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// HandleShow serves GET /api/lessons/{category}/{id}: the source, not run.
func (h *LessonHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.lessons.Render(r.Context(), pathParam(r, "category"), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// HandleInfo serves GET /api/lessons/{category}/{id}/info.
func (h *LessonHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.lessons.Info(r.Context(), pathParam(r, "category"), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleRun serves POST /api/lessons/{category}/{id}/run. An empty body runs
// locally with the default timeout.
func (h *LessonHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := checkTimeout(body.TimeoutSeconds, h.maxTimeout); err != nil {
		writeError(w, err)
		return
	}

	category, id := pathParam(r, "category"), pathParam(r, "id")
	h.logger.Debug("run requested",
		slog.String("category", category),
		slog.String("identifier", id),
		slog.String("mode", body.Mode),
	)

	res, err := h.lessons.Run(r.Context(), category, id, service.RunOptions{
		Mode:           executor.Mode(body.Mode),
		Stdin:          body.Stdin,
		TimeoutSeconds: body.TimeoutSeconds,
		LanguageID:     body.LanguageID,
	})
	respondRun(w, h.logger, res, err)
}

// HandleHistory serves GET /api/history. ?format=yaml|md switches the
// encoding; ?category= narrows it down.
func (h *LessonHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("format", err.Error()))
		return
	}

	entries := h.lessons.History()
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]model.HistoryEntry, 0, len(entries))
		for _, e := range entries {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	switch format {
	case export.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	if err := export.Write(w, format, entries); err != nil {
		h.logger.Error("failed to write history", slog.String("error", err.Error()))
	}
}

// HandleProgress serves GET /api/progress.
func (h *LessonHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	summary, err := h.lessons.Progress(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// pathParam returns a decoded route parameter. chi matches on the raw path, so
// "%2F" arrives still escaped and must be decoded before validation sees it.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func checkTimeout(seconds, limit int) error {
	if limit > 0 && seconds > limit {
		return apperror.ValidationFailed("timeoutSeconds", fmt.Sprintf("timeout must be at most %d seconds", limit))
	}
	return nil
}
