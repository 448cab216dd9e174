package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger          *zap.SugaredLogger
	httpServer      *http.Server
	afterShutdown   []func()
	shutdownTimeout time.Duration
}

// NewServer initializes the store schema and returns new Server struct serving chat routes backed by store
func NewServer(ctx context.Context, logger *zap.SugaredLogger, store Store, opts ...Option) (*Server, error) {
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("store.Initialize: %w", err)
	}

	h := newHandler(logger, store)

	c := &config{
		httpServer: &http.Server{
			Addr: "0.0.0.0:5000",
		},
		handlers: map[string]http.Handler{
			"/signup":   enforcePostJSON(http.HandlerFunc(h.signup)),
			"/login":    enforcePostJSON(http.HandlerFunc(h.login)),
			"/send":     enforcePostJSON(http.HandlerFunc(h.send)),
			"/messages": enforceGet(http.HandlerFunc(h.messages)),
			"/healthz":  enforceGet(http.HandlerFunc(h.health)),
			"/":         http.HandlerFunc(h.notFound),
		},
		requestTimeout:  10 * time.Second,
		shutdownTimeout: 15 * time.Second,
	}

	for _, opt := range opts {
		opt.apply(c)
	}

	desugared := logger.Desugar()
	for _, opt := range []Option{
		applyTimeout(),
		applyRecover(desugared),
		applyInstrument(),
		applyLog(desugared),
	} {
		opt.apply(c)
	}

	c.handlers["/metrics"] = promhttp.Handler()
	registerHandlers().apply(c)

	return &Server{
		logger:          logger,
		httpServer:      c.httpServer,
		afterShutdown:   c.afterShutdown,
		shutdownTimeout: c.shutdownTimeout,
	}, nil
}

// Handler returns root http.Handler with all routes and middlewares applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
