package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/handler"
	"github.com/ombima56/TranspaCharity/internal/router"
)

type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func NewServer(
	port string,
	h *handler.DonationHandler,
	hub *handler.Hub,
	gatherer prometheus.Gatherer,
	allowedOrigins []string,
	logger *zap.Logger,
) *Server {
	r := chi.NewRouter()
	router.SetupRoutes(r, h, hub, gatherer, allowedOrigins)

	return &Server{
		http: &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the routes, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
