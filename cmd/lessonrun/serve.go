package main

import (
	"github.com/spf13/cobra"

	"github.com/sakif/lesson-runner/internal/app"
	"github.com/sakif/lesson-runner/internal/config"
	"github.com/sakif/lesson-runner/internal/logging"
)

func newServeCmd(g *globals) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lesson runner over HTTP",
		Long: `Start the HTTP API. Lessons, history and progress share the same
configuration and history log as the CLI.

Examples:
  lessonrun serve
  lessonrun serve --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: g.configFile, EnvFile: g.envFile})
			if err != nil {
				return err
			}

			// A server logs at its configured level, to stdout.
			level, err := cfg.Log.SlogLevel()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Format, level, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: server.port)")
	return cmd
}
