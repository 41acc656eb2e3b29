// File: internal/mcp/server.go
package mcp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// Server hosts the tool endpoints over HTTP and websocket.
type Server struct {
	cfg        config.Interface
	logger     *zap.Logger
	handlers   *Handlers
	httpServer *http.Server
}

// NewServer wires the router around tools.
func NewServer(cfg config.Interface, tools *ToolService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	observability.InitMetrics()
	return &Server{
		cfg:      cfg,
		logger:   logger.Named("mcp"),
		handlers: NewHandlers(logger, tools),
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	timeout := s.cfg.MCP().RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Websocket connections outlive a single request timeout.
	r.Get("/ws/v1/tools", s.handleToolStream())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(timeout))
		s.handlers.RegisterRoutes(r)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer observability.Sync()

	addr := s.cfg.MCP().Address
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP tool server starting", zap.String("address", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	<-errCh
	s.logger.Info("MCP tool server stopped.")
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
