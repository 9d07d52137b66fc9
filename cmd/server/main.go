// Package main is the HTTP entry point of the lesson runner.
//
// main stays minimal: read configuration, build the logger and the App, run
// until SIGINT/SIGTERM. Everything else lives in internal/.
// The same server is also available as `lessonrun serve`.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/lesson-runner/internal/app"
	"github.com/sakif/lesson-runner/internal/config"
	"github.com/sakif/lesson-runner/internal/logging"
)

func main() {
	configFile := flag.String("config", "", "path to lessonrun.yaml")
	port := flag.Int("port", 0, "port to listen on (overrides server.port)")
	flag.Parse()

	if err := run(*configFile, *port); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configFile string, port int) error {
	cfg, err := config.Load(config.Options{ConfigFile: configFile})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Format, level, os.Stdout)
	if err != nil {
		return err
	}

	// Cancelled on Ctrl+C or SIGTERM; the server then drains in-flight runs.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Serve(ctx, port); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
