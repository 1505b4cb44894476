// Package server exposes the bot's webhook over HTTP with graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/mediastash/telegram"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultShutdownTimeout = 10 * time.Second

	// maxUpdateSize bounds a webhook body. Updates are a few kilobytes.
	maxUpdateSize = 1 << 20
)

var (
	// ErrSecretRequired is returned when the webhook secret is empty.
	ErrSecretRequired = errors.New("webhook secret required")

	// ErrUpdateHandlerRequired is returned when no update handler is provided.
	ErrUpdateHandlerRequired = errors.New("update handler required")
)

// UpdateHandler processes one decoded update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *telegram.Update) error
}

// Server serves the webhook, health and metrics endpoints.
type Server struct {
	httpServer      *http.Server
	secret          string
	updates         UpdateHandler
	healthCheck     func(ctx context.Context) error
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithHealthCheck sets the probe run by /healthz. An error answers 503.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) error {
		s.healthCheck = check
		return nil
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
// Default is 10 seconds.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %s", timeout)
		}
		s.shutdownTimeout = timeout
		return nil
	}
}

// New creates a server listening on addr. Updates are accepted only at
// POST /<secret>.
func New(addr, secret string, updates UpdateHandler, opts ...Option) (*Server, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if updates == nil {
		return nil, ErrUpdateHandlerRequired
	}

	s := &Server{
		secret:          secret,
		updates:         updates,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(requestLogger(s.logger, s.pathLabel))
	router.Use(metricsMiddleware(s.pathLabel))

	router.Post("/"+s.secret, s.handleWebhook)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// pathLabel names a request path for logs and metrics without leaking the
// secret or letting arbitrary paths blow up label cardinality.
func (s *Server) pathLabel(path string) string {
	switch path {
	case "/" + s.secret:
		return "/{secret}"
	case "/healthz", "/metrics":
		return path
	}
	return "other"
}

// handleWebhook always answers 200 OK. Telegram redelivers updates that get
// any other answer, and a failing update would then be retried forever.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "OK")
	}()

	var update telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&update); err != nil {
		s.logger.Warn("malformed update", "err", err)
		return
	}

	s.logger.Debug("received update", "update_id", update.UpdateID)
	if err := s.updates.HandleUpdate(r.Context(), &update); err != nil {
		s.logger.Error("update failed", "update_id", update.UpdateID, "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "unavailable")
			return
		}
	}
	_, _ = io.WriteString(w, "ok")
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server started", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
