// Package server assembles the chi router and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/lesson-runner/internal/auth"
	"github.com/sakif/lesson-runner/internal/handler"
	"github.com/sakif/lesson-runner/internal/middleware"
)

// Config holds server settings.
type Config struct {
	Port int
	// JWTSecret turns on bearer authentication for /api. Empty leaves /api open,
	// which is only sensible on localhost.
	JWTSecret      string
	PassphraseHash string
	TokenTTL       time.Duration
	// MaxTimeoutSeconds caps client-requested lesson timeouts.
	MaxTimeoutSeconds int
	// RemoteSlack is the extra time a remote run may take beyond its timeout.
	RemoteSlack     time.Duration
	ShutdownTimeout time.Duration
}

// Deps are the services the routes call into.
type Deps struct {
	Lessons handler.Lessons
	Execute handler.Dispatcher
	Remote  handler.RemoteService
}

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New builds the router. It does not listen; call Run.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(deps Deps) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealthz)

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
		if err != nil {
			return err
		}
		authHandler := handler.NewAuthHandler(tokens, auth.NewPassphrase(), s.config.PassphraseHash, s.logger)
		s.router.Post("/auth/token", authHandler.HandleToken)
	} else {
		s.logger.Warn("server.jwt_secret is not set; /api is unauthenticated")
	}

	lessons := handler.NewLessonHandler(deps.Lessons, s.config.MaxTimeoutSeconds, s.logger)
	execute := handler.NewExecuteHandler(deps.Execute, s.config.MaxTimeoutSeconds, s.logger)
	remote := handler.NewRemoteHandler(deps.Remote, s.logger)

	// scoped applies the scope check only when authentication is on.
	scoped := func(scope string) func(http.Handler) http.Handler {
		if tokens == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return auth.RequireScope(scope)
	}

	s.router.Route("/api", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireBearer(tokens))
		}

		r.Group(func(r chi.Router) {
			r.Use(scoped(auth.ScopeRead))
			r.Get("/lessons", lessons.HandleCatalogue)
			r.Get("/lessons/{category}", lessons.HandleList)
			r.Get("/lessons/{category}/{id}", lessons.HandleShow)
			r.Get("/lessons/{category}/{id}/info", lessons.HandleInfo)
			r.Get("/history", lessons.HandleHistory)
			r.Get("/progress", lessons.HandleProgress)
			r.Get("/remote/health", remote.HandleHealth)
			r.Get("/remote/languages", remote.HandleLanguages)
		})

		r.Group(func(r chi.Router) {
			r.Use(scoped(auth.ScopeRun))
			r.Post("/lessons/{category}/{id}/run", lessons.HandleRun)
			r.Post("/execute", execute.HandleExecute)
		})
	})

	return nil
}

// writeTimeout must outlast the longest run a client may ask for, plus the
// remote HTTP slack, or the connection is cut while the result is on its way.
func (s *Server) writeTimeout() time.Duration {
	maxRun := time.Duration(s.config.MaxTimeoutSeconds) * time.Second
	if maxRun <= 0 {
		return 0
	}
	return maxRun + s.config.RemoteSlack + 15*time.Second
}

// Run listens until ctx is cancelled, then shuts down gracefully.
//
// errgroup runs the listener and the shutdown watcher side by side: whichever
// finishes first with an error cancels the other, and Wait returns that error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.Bool("auth", s.config.JWTSecret != ""),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
