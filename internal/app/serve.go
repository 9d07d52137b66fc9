package app

import (
	"context"

	"github.com/sakif/lesson-runner/internal/server"
)

// Serve runs the HTTP API on top of a until ctx is cancelled. port overrides
// server.port when positive.
func (a *App) Serve(ctx context.Context, port int) error {
	cfg := a.Config.Server
	if port > 0 {
		cfg.Port = port
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Port,
		JWTSecret:         cfg.JWTSecret,
		PassphraseHash:    cfg.PassphraseHash,
		TokenTTL:          cfg.TokenTTL,
		MaxTimeoutSeconds: cfg.MaxTimeoutSeconds,
		RemoteSlack:       a.Config.Remote.HTTPSlack,
	}, server.Deps{
		Lessons: a.Lessons,
		Execute: a.Lessons,
		Remote:  a.Remote,
	}, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
