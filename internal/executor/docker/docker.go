// Package docker runs lessons inside throwaway containers instead of host processes.
//
// It is an alternative backend for local mode: results are labeled exactly like
// the host-process runner and carry Mode "local". Each run takes a fresh
// pre-warmed container from the pool and removes it afterwards.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/lesson-runner/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor is the container backend of local mode.
type Executor struct {
	cli    *client.Client
	cfg    Config
	logger *slog.Logger
	pool   *containerPool
}

// New connects to the daemon from the environment (DOCKER_HOST etc.), pulls the
// image and starts filling the pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}
	if err := pullImage(cli, cfg, logger); err != nil {
		cli.Close()
		return nil, err
	}

	return &Executor{
		cli:    cli,
		cfg:    cfg,
		logger: logger,
		pool:   newContainerPool(cli, cfg, logger),
	}, nil
}

func pullImage(cli *client.Client, cfg Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PullTimeout)
	defer cancel()

	logger.Info("pulling lesson image", slog.String("image", cfg.Image))
	progress, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pulling image %s: %w", cfg.Image, err)
	}
	defer progress.Close()

	// The pull is only finished once its progress stream is drained.
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return fmt.Errorf("docker: pulling image %s: %w", cfg.Image, err)
	}
	return nil
}

// Close removes idle containers and closes the daemon connection.
func (e *Executor) Close() error {
	e.pool.close()
	return e.cli.Close()
}

// Execute runs the lesson source in a pre-warmed container. Infrastructure
// failures become "Execution Error" results; the error is always nil.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()
	res := e.run(ctx, req)
	res.Mode = executor.ModeLocal
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Executor) run(ctx context.Context, req executor.ExecutionRequest) *executor.ExecutionResult {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout())
	defer cancel()

	// Waiting for a container counts against the lesson's budget.
	id, err := e.pool.acquire(runCtx)
	if err != nil {
		return e.interrupted(ctx, req, runCtx, fmt.Errorf("acquiring container: %w", err))
	}
	defer e.pool.discard(id)

	out, err := e.exec(runCtx, id, req)
	if err != nil {
		return e.interrupted(ctx, req, runCtx, err)
	}
	return classify(out)
}

// execOutput is what one docker exec produced.
type execOutput struct {
	exitCode int
	stdout   string
	stderr   string
}

func (e *Executor) exec(ctx context.Context, containerID string, req executor.ExecutionRequest) (execOutput, error) {
	created, err := e.cli.ContainerExecCreate(ctx, containerID, e.cfg.execSpec(req.Source))
	if err != nil {
		return execOutput{}, fmt.Errorf("creating exec: %w", err)
	}

	stream, err := e.cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return execOutput{}, fmt.Errorf("attaching to exec: %w", err)
	}
	defer stream.Close()

	go func() {
		if req.Stdin != "" {
			_, _ = io.Copy(stream.Conn, strings.NewReader(req.Stdin))
		}
		_ = stream.CloseWrite()
	}()

	var stdout, stderr bytes.Buffer
	drained := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, stream.Reader)
		drained <- err
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return execOutput{}, ctx.Err()
	}

	inspectCtx, cancel := context.WithTimeout(context.Background(), daemonBudget/2)
	defer cancel()
	state, err := e.cli.ContainerExecInspect(inspectCtx, created.ID)
	if err != nil {
		return execOutput{}, fmt.Errorf("inspecting exec: %w", err)
	}
	return execOutput{exitCode: state.ExitCode, stdout: stdout.String(), stderr: stderr.String()}, nil
}

// interrupted labels a run that did not finish: the caller's cancellation,
// the lesson's timeout, or a daemon failure.
func (e *Executor) interrupted(parent context.Context, req executor.ExecutionRequest, runCtx context.Context, err error) *executor.ExecutionResult {
	switch {
	case parent.Err() != nil:
		return executor.Failure(executor.ModeLocal, executor.StatusCancelled, fmt.Sprintf("execution cancelled: %v", parent.Err()))
	case runCtx.Err() != nil:
		e.logger.Warn("container run timed out", slog.String("lesson", req.Ref().String()))
		return executor.Failure(executor.ModeLocal, executor.StatusTimeout,
			fmt.Sprintf("Execution timeout (%ds)", req.EffectiveTimeoutSeconds()))
	}
	return executor.Failure(executor.ModeLocal, executor.StatusExecutionError, err.Error())
}

// classify maps a finished exec onto the local-mode result vocabulary.
func classify(out execOutput) *executor.ExecutionResult {
	exitCode := out.exitCode
	if exitCode == 0 {
		return &executor.ExecutionResult{
			Success:     true,
			Stdout:      out.stdout,
			StatusLabel: executor.StatusAccepted,
			ExitCode:    &exitCode,
		}
	}

	stderr := out.stderr
	if stderr == "" {
		stderr = fmt.Sprintf("process exited with code %d", exitCode)
	}
	return &executor.ExecutionResult{
		Stdout:      out.stdout,
		Stderr:      stderr,
		StatusLabel: executor.StatusRuntimeError,
		ExitCode:    &exitCode,
	}
}
