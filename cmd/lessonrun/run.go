package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/service"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		remote   bool
		stdin    string
		timeout  int
		language int
	)

	cmd := &cobra.Command{
		Use:   "run <category> <lesson>",
		Short: "Run a lesson and record the attempt",
		Long: `Run a lesson locally (default) or on the configured Judge0 server.

The lesson may be named with or without its extension. Every run is recorded in
history, including failures and timeouts.

Examples:
  lessonrun run basics 01_hello_dspy
  lessonrun run basics 01_hello_dspy.py --remote
  lessonrun run basics 05_input --stdin "Ada"
  echo Ada | lessonrun run basics 05_input --stdin -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := stdin
			if stdin == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				input = string(data)
			}

			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			mode := executor.ModeLocal
			if remote {
				mode = executor.ModeRemote
			}
			if timeout == 0 {
				timeout = a.Config.DefaultTimeoutSeconds
			}

			out := cmd.OutOrStdout()
			if g.verbose {
				fmt.Fprintf(out, "Running %s/%s (%s, timeout %ds)\n", args[0], args[1], mode, timeout)
			}

			res, err := a.Lessons.Run(cmd.Context(), args[0], args[1], service.RunOptions{
				Mode:           mode,
				Stdin:          input,
				TimeoutSeconds: timeout,
				LanguageID:     language,
			})
			if res != nil {
				printResult(out, res)
			}
			if err != nil {
				if res != nil && errors.Is(err, apperror.ErrPersistence) {
					color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				} else {
					return err
				}
			}
			if !res.Success {
				return errLessonFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "run on the Judge0 server instead of locally")
	cmd.Flags().StringVar(&stdin, "stdin", "", `standard input for the lesson ("-" reads it from this process's stdin)`)
	cmd.Flags().IntVar(&timeout, "timeout", 0, "timeout in seconds (default: default_timeout_seconds)")
	cmd.Flags().IntVar(&language, "language", 0, "Judge0 language id for --remote (default: remote.language_id)")
	return cmd
}

// printResult renders a result the way the run command shows it:
// a status line, then stdout, then stderr in red.
func printResult(w io.Writer, res *executor.ExecutionResult) {
	status := color.New(color.FgGreen, color.Bold)
	mark := "✓"
	if !res.Success {
		status = color.New(color.FgRed, color.Bold)
		mark = "✗"
	}

	status.Fprintf(w, "%s %s", mark, res.StatusLabel)
	fmt.Fprintf(w, "  %s  %s  %s\n", res.Lesson, res.Mode, formatMetrics(res))

	if res.Stdout != "" {
		fmt.Fprint(w, ensureNewline(res.Stdout))
	}
	if res.Stderr != "" {
		color.New(color.FgRed).Fprint(w, ensureNewline(res.Stderr))
	}
}

func formatMetrics(res *executor.ExecutionResult) string {
	parts := []string{res.Duration.Round(time.Millisecond).String()}
	if res.TimeMillis != nil {
		parts = append(parts, fmt.Sprintf("cpu %.0fms", *res.TimeMillis))
	}
	if res.MemoryKB != nil {
		parts = append(parts, fmt.Sprintf("mem %dKB", *res.MemoryKB))
	}
	if res.ExitCode != nil && *res.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit %d", *res.ExitCode))
	}
	return color.New(color.Faint).Sprint(strings.Join(parts, ", "))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

