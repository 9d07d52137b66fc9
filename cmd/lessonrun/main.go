// Command lessonrun runs lessons locally or on a Judge0 server and keeps a
// history of every attempt.
//
//	lessonrun list
//	lessonrun run basics 01_hello_dspy
//	lessonrun run basics 01_hello_dspy --remote
//	lessonrun progress
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sakif/lesson-runner/internal/app"
	"github.com/sakif/lesson-runner/internal/config"
	"github.com/sakif/lesson-runner/internal/logging"
)

// errLessonFailed makes the process exit 1 after a failed run without printing
// anything more; the result has already been shown.
var errLessonFailed = errors.New("lesson failed")

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configFile string
	envFile    string
	verbose    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "lessonrun",
		Short: "Run lessons locally or on Judge0 and track your progress",
		Long: `lessonrun executes lesson scripts either as a local process or on a remote
Judge0 server, normalizes the outcome and records every attempt in a history log.

Lessons live under <content_root>/lessons/<category>/. Configuration comes from
lessonrun.yaml, a .env file and LESSONRUN_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (default: ./lessonrun.yaml or $HOME/.lessonrun/lessonrun.yaml)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file to load (default: .env)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "show log output and per-lesson detail")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newInfoCmd(g),
		newHistoryCmd(g),
		newProgressCmd(g),
		newRemoteCmd(g),
		newServeCmd(g),
		newHashPassphraseCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errLessonFailed) {
			color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the CLI logger. Logs go to stderr
// so they never mix with lesson output; without -v only warnings show.
func (g *globals) loadConfig(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.Options{ConfigFile: g.configFile, EnvFile: g.envFile})
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if !g.verbose && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger, err := logging.New(cfg.Log.Format, level, stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openApp loads configuration and wires the App. Callers must Close it.
func (g *globals) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}
