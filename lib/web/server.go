// Package web provides the HTTP monitor for a connection pool. It serves
// Prometheus metrics, JSON statistics, a checkout probe and a few
// administrative endpoints.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/pool"
)

// DefaultProbeTimeout bounds a probe when Config.ProbeTimeout is zero.
const DefaultProbeTimeout = 10 * time.Second

// Server is the monitor HTTP server.
type Server struct {
	httpServer   *http.Server
	handler      http.Handler
	pool         *pool.Pool
	probeTimeout time.Duration
	throttle     *throttle
	logger       *slog.Logger
	mu           sync.RWMutex
	running      bool
}

// Config holds monitor server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:9190")
	ListenAddr string
	// ProbeTimeout bounds the checkout of a probe request
	ProbeTimeout time.Duration
	// Admin bounds calls to the POST routes; zero fields take the defaults
	Admin AdminLimits
	// Logger is the structured logger
	Logger *slog.Logger
}

// New creates a monitor server for p. Call Stop to release the listener and
// the POST route budgets. The server does not own the pool.
func New(p *pool.Pool, cfg Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("web: nil pool")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	s := &Server{
		pool:         p,
		probeTimeout: cfg.ProbeTimeout,
		throttle:     newThrottle(cfg.Admin),
		logger:       cfg.Logger,
	}

	mux := http.NewServeMux()

	// Read-only endpoints
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	// State-changing endpoints, each with its own per-client budget
	s.handleAdmin(mux, "POST /api/probe", http.HandlerFunc(s.handleProbe))
	s.handleAdmin(mux, "POST /api/stats/reset", http.HandlerFunc(s.handleStatsReset))
	s.handleAdmin(mux, "POST /api/pool/enable", s.handleSetEnabled(true))
	s.handleAdmin(mux, "POST /api/pool/disable", s.handleSetEnabled(false))

	// Health check endpoints
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	s.handler = s.withMiddleware(mux)
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.ProbeTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts listening and serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("monitor started", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.throttle.close()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	defer s.throttle.close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("monitor stopped")
	return nil
}

// withMiddleware wraps the handler with common middleware.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)

		s.logger.Debug("response",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// handleAdmin registers h under pattern behind the caller's budget for that
// route. Calls over budget get 429 and a coded JSON error.
func (s *Server) handleAdmin(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		client, ok := s.throttle.allow(r, pattern)
		if !ok {
			ThrottledRequests.Inc()
			s.logger.Warn("monitor request throttled", "client", client, "route", pattern)
			w.Header().Set("Retry-After", "1")
			s.writeJSON(w, http.StatusTooManyRequests,
				apperrors.New(apperrors.CodeUnavailable, "too many requests"))
			return
		}
		h.ServeHTTP(w, r)
	})
}

// handleMetrics refreshes the pool gauges so a scrape never sees values
// older than the last sampling tick, then serves the default registry.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	pool.UpdateMetrics(s.pool.Statistics(time.Time{}))
	metrics.Handler().ServeHTTP(w, r)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}
