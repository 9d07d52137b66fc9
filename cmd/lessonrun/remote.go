package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRemoteCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect the configured Judge0 server",
	}
	cmd.AddCommand(newRemoteHealthCmd(g), newRemoteLanguagesCmd(g))
	return cmd
}

func newRemoteHealthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the Judge0 server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if a.Remote.HealthCheck(cmd.Context()) {
				color.New(color.FgGreen).Fprintf(out, "✓ Judge0 is reachable at %s\n", a.Remote.BaseURL())
				return nil
			}
			color.New(color.FgRed).Fprintf(out, "✗ Judge0 is not reachable at %s\n", a.Remote.BaseURL())
			return errLessonFailed
		},
	}
}

func newRemoteLanguagesCmd(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages the Judge0 server supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			langs, err := a.Remote.ListLanguages(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			current := a.Config.Remote.LanguageID
			for _, l := range langs {
				if l.IsArchived && !all {
					continue
				}
				line := fmt.Sprintf("%4d  %s", l.ID, l.Name)
				if l.ID == current {
					color.New(color.Bold).Fprintln(out, line+"  (configured)")
					continue
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include archived languages")
	return cmd
}
