// Package service contains the business logic layer of the application.
//
// THE LAYERS:
//
//	Handler / CLI (edge)     → parses input, prints or writes responses
//	Service (business layer) → validates, routes, records history
//	Executor / Repository    → runs code, reads lessons, stores history
//
// Every lesson run, whether it comes from the CLI, the HTTP API or an embedding
// program, goes through Dispatcher.Dispatch. Nothing else writes history.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/repository"
)

// Dispatcher routes an ExecutionRequest to the local or remote executor,
// normalizes whatever comes back and records exactly one history entry per
// valid request.
//
// TWO KINDS OF FAILURE:
// A crash, a timeout or a network error while running the lesson is an
// *outcome*. It comes back as a failed ExecutionResult and is recorded like any
// other attempt. Only a malformed request (ErrValidation, nothing recorded) or a
// history write failure (ErrPersistence, result still returned) are errors.
type Dispatcher struct {
	history repository.HistoryRepository
	local   executor.Executor
	remote  executor.Executor
	logger  *slog.Logger
	now     func() time.Time

	// mu serializes append + mirror so concurrent callers cannot interleave
	// entries differently in the store and in memory.
	mu      sync.Mutex
	entries []model.HistoryEntry
}

// NewDispatcher loads the existing history once and returns a ready Dispatcher.
//
// local or remote may be nil; requests for a missing executor produce a failed
// result instead of an error. Pass an untyped nil, not a nil pointer of a
// concrete executor type.
func NewDispatcher(
	ctx context.Context,
	history repository.HistoryRepository,
	local, remote executor.Executor,
	logger *slog.Logger,
) (*Dispatcher, error) {
	entries, err := history.Load(ctx)
	if err != nil {
		return nil, apperror.PersistenceFailed("load", err)
	}
	logger.Debug("history loaded", slog.Int("entries", len(entries)))

	return &Dispatcher{
		history: history,
		local:   local,
		remote:  remote,
		logger:  logger,
		now:     time.Now,
		entries: entries,
	}, nil
}

// Dispatch validates req, runs it, records the attempt and returns the result.
//
// The returned result is non-nil whenever validation passed, even if the
// returned error reports that history could not be written.
func (d *Dispatcher) Dispatch(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	res := d.run(ctx, req)
	res.Mode = req.Mode
	res.Lesson = req.Ref()

	d.logger.Info("lesson executed",
		slog.String("lesson", req.Ref().String()),
		slog.String("mode", string(req.Mode)),
		slog.String("status", res.StatusLabel),
		slog.Bool("success", res.Success),
		slog.Duration("duration", res.Duration),
	)

	entry := model.NewHistoryEntry(req, *res, d.now())
	if err := d.record(ctx, entry); err != nil {
		return res, err
	}
	return res, nil
}

// History returns a copy of the log in insertion order.
func (d *Dispatcher) History() []model.HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.HistoryEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// normalizeRequest applies defaults and rejects requests that cannot be run.
func normalizeRequest(req executor.ExecutionRequest) (executor.ExecutionRequest, error) {
	req.Category = strings.TrimSpace(req.Category)
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return req, apperror.ValidationFailed("identifier", "lesson identifier is required")
	}

	mode, err := executor.ParseMode(string(req.Mode))
	if err != nil {
		return req, apperror.ValidationFailed("mode", err.Error())
	}
	req.Mode = mode

	switch {
	case req.TimeoutSeconds < 0:
		return req, apperror.ValidationFailed("timeoutSeconds", "timeout must be positive")
	case req.TimeoutSeconds == 0:
		req.TimeoutSeconds = executor.DefaultTimeoutSeconds
	}
	return req, nil
}

// run calls the executor for req.Mode and turns every way it can go wrong
// (missing executor, returned error, nil result, panic) into a failed result.
func (d *Dispatcher) run(ctx context.Context, req executor.ExecutionRequest) (res *executor.ExecutionResult) {
	runner, faultLabel := d.local, executor.StatusExecutionError
	if req.Mode == executor.ModeRemote {
		runner, faultLabel = d.remote, executor.StatusAPIError
	}
	if runner == nil {
		return executor.Failure(req.Mode, faultLabel, fmt.Sprintf("%s execution is not configured", req.Mode))
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("executor panicked",
				slog.String("lesson", req.Ref().String()),
				slog.String("panic", fmt.Sprint(r)),
			)
			res = executor.Failure(req.Mode, executor.StatusInternalError, fmt.Sprintf("executor panic: %v", r))
			res.Duration = time.Since(start)
		}
	}()

	out, err := runner.Execute(ctx, req)
	if err != nil {
		d.logger.Warn("executor failed",
			slog.String("lesson", req.Ref().String()),
			slog.String("error", err.Error()),
		)
		out = executor.Failure(req.Mode, faultLabel, err.Error())
	}
	if out == nil {
		out = executor.Failure(req.Mode, executor.StatusInternalError, "executor returned no result")
	}
	if out.StatusLabel == "" {
		out.StatusLabel = executor.StatusInternalError
		if out.Success {
			out.StatusLabel = executor.StatusAccepted
		}
	}
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	return out
}

// record appends entry to the store and, only once it is durable, to the
// in-memory mirror.
//
// The append runs on a context detached from the caller's cancellation: an
// attempt cancelled mid-run is still an attempt and must be written.
func (d *Dispatcher) record(ctx context.Context, entry model.HistoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Error("failed to append history entry",
			slog.String("id", entry.ID),
			slog.String("lesson", entry.Ref().String()),
			slog.String("error", err.Error()),
		)
		return apperror.PersistenceFailed("append", err)
	}
	d.entries = append(d.entries, entry)
	return nil
}
