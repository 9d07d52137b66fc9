// Package app wires configuration into a running lesson runner: history store,
// executors, Dispatcher and LessonService. The CLI and the HTTP server both
// start from here so they always share one history and one set of rules.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/lesson-runner/internal/config"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/executor/docker"
	"github.com/sakif/lesson-runner/internal/executor/judge0"
	"github.com/sakif/lesson-runner/internal/executor/local"
	"github.com/sakif/lesson-runner/internal/repository"
	"github.com/sakif/lesson-runner/internal/repository/filesystem"
	"github.com/sakif/lesson-runner/internal/repository/jsonfile"
	"github.com/sakif/lesson-runner/internal/repository/sqlite"
	"github.com/sakif/lesson-runner/internal/service"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config     *config.Config
	Lessons    *service.LessonService
	Dispatcher *service.Dispatcher
	Remote     *judge0.Client
	History    repository.HistoryRepository

	closers []io.Closer
	logger  *slog.Logger
}

// New builds an App from cfg. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	root, err := filepath.Abs(cfg.ContentRoot)
	if err != nil {
		return fmt.Errorf("resolving content root: %w", err)
	}

	a.History, err = openHistory(cfg.History, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.History)

	localExec, err := a.newLocalExecutor(cfg.Local, root)
	if err != nil {
		return err
	}

	a.Remote = judge0.New(judge0.Config{
		BaseURL:     cfg.Remote.BaseURL,
		LanguageID:  cfg.Remote.LanguageID,
		AuthToken:   cfg.Remote.AuthToken,
		BearerToken: cfg.Remote.BearerToken,
		HTTPSlack:   cfg.Remote.HTTPSlack,
	}, a.logger.With(slog.String("component", "judge0")))

	a.Dispatcher, err = service.NewDispatcher(ctx, a.History, localExec, a.Remote, a.logger)
	if err != nil {
		return err
	}

	a.Lessons = service.NewLessonService(filesystem.New(root, cfg.Local.Extension), a.Dispatcher, a.logger)

	a.logger.Debug("lesson runner ready",
		slog.String("contentRoot", root),
		slog.String("history", cfg.History.Path),
		slog.String("historyBackend", cfg.History.Backend),
		slog.String("localBackend", cfg.Local.Backend),
		slog.String("remote", a.Remote.BaseURL()),
	)
	return nil
}

func openHistory(cfg config.HistoryConfig, logger *slog.Logger) (repository.HistoryRepository, error) {
	switch cfg.Backend {
	case config.HistorySQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		return db, nil
	case config.HistoryJSON, "":
		store, err := jsonfile.Open(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("opening history file: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
}

func (a *App) newLocalExecutor(cfg config.LocalConfig, root string) (executor.Executor, error) {
	if cfg.Backend == config.BackendDocker {
		d := docker.DefaultConfig()
		d.Image = cfg.Docker.Image
		d.ContentRoot = root
		d.MemoryLimit = cfg.Docker.MemoryLimit
		d.CPULimit = cfg.Docker.CPULimit
		d.PoolSize = cfg.Docker.PoolSize

		exec, err := docker.New(d, a.logger.With(slog.String("component", "docker")))
		if err != nil {
			return nil, fmt.Errorf("starting docker backend: %w", err)
		}
		a.closers = append(a.closers, exec)
		return exec, nil
	}

	l := local.DefaultConfig()
	l.Interpreter = cfg.Interpreter
	l.Extension = cfg.Extension
	l.WorkDir = root
	return local.New(l, a.logger.With(slog.String("component", "local"))), nil
}

// Close releases executors and the history store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
