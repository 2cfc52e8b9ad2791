// Package api exposes the task, workflow and statistics operations over
// HTTP with a static API-key gate.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/marcus/taskflow/internal/audit"
	"github.com/marcus/taskflow/internal/db"
	"github.com/marcus/taskflow/internal/logging"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/tasks"
	"github.com/marcus/taskflow/internal/workflows"
)

const (
	// Version is reported by the health probe and the index.
	Version = "1.0.0"
	// APIKeyHeader carries the shared secret.
	APIKeyHeader = "X-API-Key"

	maxBodyBytes = 1 << 20
)

// Options configures a Server. Audit and DB may be nil, which disables the
// audit trail and the stats history respectively.
type Options struct {
	APIKey string
	Logger *logging.Logger
	Audit  *audit.Logger
	DB     *db.DB
	Now    func() time.Time
}

// Server routes HTTP requests to the stores.
type Server struct {
	tasks     *tasks.Store
	workflows *workflows.Store
	stats     *stats.Stats
	audit     *audit.Logger
	db        *db.DB
	apiKey    atomic.Value
	log       *logging.Logger
	now       func() time.Time
	handler   http.Handler
}

// New creates a Server over the given stores.
func New(ts *tasks.Store, ws *workflows.Store, opts Options) *Server {
	s := &Server{
		tasks:     ts,
		workflows: ws,
		stats:     stats.New(ts),
		audit:     opts.Audit,
		db:        opts.DB,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = logging.Component("api")
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.apiKey.Store(opts.APIKey)
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetAPIKey swaps the accepted key. Safe to call while serving.
func (s *Server) SetAPIKey(key string) {
	s.apiKey.Store(key)
	s.log.Info("api key rotated")
}

func (s *Server) currentKey() string {
	key, _ := s.apiKey.Load().(string)
	return key
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/tasks", s.requireKey(s.handleCreateTask))
	mux.Handle("GET /api/tasks", s.requireKey(s.handleListTasks))
	mux.Handle("GET /api/tasks/{id}", s.requireKey(s.handleGetTask))
	mux.Handle("PATCH /api/tasks/{id}", s.requireKey(s.handleUpdateTask))

	mux.Handle("POST /api/workflows", s.requireKey(s.handleCreateWorkflow))
	mux.Handle("GET /api/workflows", s.requireKey(s.handleListWorkflows))
	mux.Handle("GET /api/workflows/{id}", s.requireKey(s.handleGetWorkflow))

	mux.Handle("GET /api/stats", s.requireKey(s.handleStats))
	mux.Handle("GET /api/stats/history", s.requireKey(s.handleStatsHistory))
	mux.Handle("GET /api/audit", s.requireKey(s.handleAudit))

	mux.HandleFunc("/", s.handleNotFound)

	return requestID(logging.Middleware(s.log)(recoverer(s.log, mux)))
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, readTimeout, writeTimeout, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoCtx("listening", map[string]any{"addr": ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
