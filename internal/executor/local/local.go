// Package local runs lessons as fresh child processes on the host.
//
// There is no sandbox here beyond the wall-clock timeout. Every run gets its own
// process, its own temp file for the source, and the content root as working dir.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sakif/lesson-runner/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements executor.Executor by spawning the configured interpreter.
type Executor struct {
	config Config
	logger *slog.Logger
}

// New creates a local Executor.
func New(cfg Config, logger *slog.Logger) *Executor {
	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultConfig().Interpreter
	}
	return &Executor{
		config: cfg,
		logger: logger,
	}
}

// Execute runs req.Source in a new process. It never returns an error: spawn
// failures, non-zero exits and timeouts all come back as failed results.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()
	res := e.run(ctx, req)
	res.Mode = executor.ModeLocal
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Executor) run(ctx context.Context, req executor.ExecutionRequest) *executor.ExecutionResult {
	tmpDir, err := os.MkdirTemp("", "lessonrun-*")
	if err != nil {
		return executor.Failure(executor.ModeLocal, executor.StatusExecutionError, fmt.Sprintf("creating temp dir: %v", err))
	}
	defer os.RemoveAll(tmpDir)

	sourcePath := filepath.Join(tmpDir, "lesson"+e.config.Extension)
	if err := os.WriteFile(sourcePath, []byte(req.Source), 0o600); err != nil {
		return executor.Failure(executor.ModeLocal, executor.StatusExecutionError, fmt.Sprintf("writing lesson file: %v", err))
	}

	timeout := req.Timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, e.config.Args...), sourcePath)
	cmd := exec.CommandContext(runCtx, e.config.Interpreter, args...)
	cmd.Dir = e.config.WorkDir
	cmd.Stdin = strings.NewReader(req.Stdin)
	cmd.WaitDelay = e.config.WaitDelay
	if len(e.config.Env) > 0 {
		cmd.Env = append(os.Environ(), e.config.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("starting local process",
		slog.String("lesson", req.Ref().String()),
		slog.String("interpreter", e.config.Interpreter),
		slog.Duration("timeout", timeout),
	)

	err = cmd.Run()

	// The process exited cleanly but a grandchild kept the pipes open.
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}

	switch {
	case err == nil:
		exitCode := 0
		return &executor.ExecutionResult{
			Success:     true,
			Stdout:      stdout.String(),
			StatusLabel: executor.StatusAccepted,
			ExitCode:    &exitCode,
		}

	case ctx.Err() != nil:
		// The caller went away; this is not the lesson's fault.
		return executor.Failure(executor.ModeLocal, executor.StatusCancelled, fmt.Sprintf("execution cancelled: %v", ctx.Err()))

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// Nothing is salvaged from a killed process.
		e.logger.Warn("local execution timed out",
			slog.String("lesson", req.Ref().String()),
			slog.Int("timeoutSeconds", req.EffectiveTimeoutSeconds()),
		)
		return executor.Failure(executor.ModeLocal, executor.StatusTimeout,
			fmt.Sprintf("Execution timeout (%ds)", req.EffectiveTimeoutSeconds()))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode := exitErr.ExitCode()
		res := &executor.ExecutionResult{
			Success:     false,
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			StatusLabel: executor.StatusRuntimeError,
			ExitCode:    &exitCode,
		}
		if res.Stderr == "" {
			res.Stderr = fmt.Sprintf("process exited with code %d", exitCode)
		}
		return res
	}

	// Could not start at all: missing interpreter, bad work dir, permissions.
	e.logger.Error("failed to start local process",
		slog.String("interpreter", e.config.Interpreter),
		slog.String("error", err.Error()),
	)
	return executor.Failure(executor.ModeLocal, executor.StatusExecutionError, err.Error())
}
