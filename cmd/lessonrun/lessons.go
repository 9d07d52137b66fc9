package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "List available lessons",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			heading := color.New(color.Bold)

			catalogue := map[string][]string{}
			if len(args) == 1 {
				ids, err := a.Lessons.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				catalogue[args[0]] = ids
			} else if catalogue, err = a.Lessons.Catalogue(cmd.Context()); err != nil {
				return err
			}
			if len(catalogue) == 0 {
				fmt.Fprintf(out, "No lessons found under %s.\n", filepath.Join(a.Config.ContentRoot, "lessons"))
				return nil
			}

			categories := make([]string, 0, len(catalogue))
			for c := range catalogue {
				categories = append(categories, c)
			}
			sort.Strings(categories)

			for _, c := range categories {
				ids := catalogue[c]
				heading.Fprintf(out, "%s:\n", strings.ToUpper(c))
				if len(ids) == 0 {
					fmt.Fprintln(out, "  (none)")
				}
				for _, id := range ids {
					fmt.Fprintf(out, "  • %s\n", id)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <category> <lesson>",
		Short: "Print a lesson's source without running it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			lesson, err := a.Lessons.Render(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ensureNewline(lesson.Source))
			return nil
		},
	}
}

func newInfoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "info <category> <lesson>",
		Short: "Show lesson metadata and its leading documentation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.Lessons.Info(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			label := color.New(color.Bold)
			label.Fprint(out, "Name:     ")
			fmt.Fprintln(out, info.Name)
			label.Fprint(out, "Category: ")
			fmt.Fprintln(out, info.Category)
			label.Fprint(out, "Path:     ")
			fmt.Fprintln(out, info.Path)
			label.Fprint(out, "Size:     ")
			fmt.Fprintf(out, "%d bytes\n", info.Size)
			if info.Summary != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, info.Summary)
			}
			return nil
		},
	}
}
