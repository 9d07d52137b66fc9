package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sakif/lesson-runner/internal/export"
	"github.com/sakif/lesson-runner/internal/progress"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		format   string
		output   string
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or export the execution history",
		Long: `Show the recorded attempts, oldest first.

Examples:
  lessonrun history --limit 10
  lessonrun history --format yaml
  lessonrun history --format md -o progress.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.Lessons.History()
			if category != "" {
				filtered := entries[:0:0]
				for _, e := range entries {
					if e.Category == category {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}

			if err := export.Write(w, f, entries); err != nil {
				return err
			}
			if output != "" {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "output format: json, yaml or md")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&category, "category", "", "only show one category")
	cmd.Flags().IntVar(&limit, "limit", 0, "only show the most recent N entries")
	return cmd
}

func newProgressCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show which lessons you have completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Lessons.Progress(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if s.TotalExecutions == 0 {
				fmt.Fprintln(out, "No lessons run yet. Start with: lessonrun list")
				return nil
			}

			bold := color.New(color.Bold)
			bold.Fprintln(out, "Your Learning Progress")
			fmt.Fprintf(out, "Total executions: %d (%d succeeded, %d failed)\n", s.TotalExecutions, s.Successful, s.Failed)
			fmt.Fprintf(out, "Unique lessons completed: %d\n", s.UniqueCompleted)
			fmt.Fprintf(out, "Progress: %d/%d lessons (%.0f%%)\n", completedInCatalogue(s.Categories), s.TotalAvailable, s.Percent())
			if s.LastRun != nil {
				fmt.Fprintf(out, "Last run: %s\n", s.LastRun.Local().Format("2006-01-02 15:04"))
			}

			fmt.Fprintln(out)
			bold.Fprintln(out, "By category:")
			done, todo := color.New(color.FgGreen), color.New(color.Faint)
			for _, c := range s.Categories {
				fmt.Fprintf(out, "  %s: %d/%d\n", c.Category, c.Completed, c.Total)
				if !g.verbose {
					continue
				}
				for _, l := range c.Lessons {
					if l.Completed {
						done.Fprintf(out, "    ✓ %s", l.Identifier)
					} else {
						todo.Fprintf(out, "    ○ %s", l.Identifier)
					}
					fmt.Fprintf(out, " (%d attempts)\n", l.Attempts)
				}
			}
			return nil
		},
	}
}

func completedInCatalogue(categories []progress.CategoryProgress) int {
	n := 0
	for _, c := range categories {
		n += c.Completed
	}
	return n
}
