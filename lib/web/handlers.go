package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/pool"
)

// ProbeResponse is the result of POST /api/probe.
type ProbeResponse struct {
	Valid      bool    `json:"valid"`
	CheckoutMS float64 `json:"checkout_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// ConfigResponse is the live pool configuration.
type ConfigResponse struct {
	MinimumSize                  int    `json:"minimum_size"`
	MaximumSize                  int    `json:"maximum_size"`
	CleanupInterval              string `json:"cleanup_interval"`
	ResourceTimeout              string `json:"resource_timeout"`
	MaximumCheckoutWait          string `json:"maximum_checkout_wait"`
	NewResourceThreshold         string `json:"new_resource_threshold"`
	StatisticsInterval           string `json:"statistics_interval"`
	CollectFineGrainedStatistics bool   `json:"collect_fine_grained_statistics"`
	Enabled                      bool   `json:"enabled"`
	Closed                       bool   `json:"closed"`
	User                         string `json:"user"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Enabled   bool   `json:"enabled"`
	Closed    bool   `json:"closed"`
}

// handleStats returns pool statistics. The optional since parameter is an
// RFC3339 time limiting the returned snapshots.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			e := apperrors.Wrap(apperrors.CodeInvalidParams, "since must be an RFC3339 time", err)
			s.writeJSON(w, http.StatusBadRequest, e)
			return
		}
		since = t
	}

	s.writeJSON(w, http.StatusOK, s.pool.Statistics(since))
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.ResetStatistics(); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("statistics reset", "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, s.pool.Statistics(time.Time{}))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.pool.Config()
	s.writeJSON(w, http.StatusOK, ConfigResponse{
		MinimumSize:                  cfg.MinimumSize,
		MaximumSize:                  cfg.MaximumSize,
		CleanupInterval:              cfg.CleanupInterval.String(),
		ResourceTimeout:              cfg.ResourceTimeout.String(),
		MaximumCheckoutWait:          cfg.MaximumCheckoutWait.String(),
		NewResourceThreshold:         cfg.NewResourceThreshold.String(),
		StatisticsInterval:           cfg.StatisticsInterval.String(),
		CollectFineGrainedStatistics: cfg.CollectFineGrainedStatistics,
		Enabled:                      s.pool.Enabled(),
		Closed:                       s.pool.Closed(),
		User:                         s.pool.Credential().User,
	})
}

// handleProbe checks a resource out, verifies it and returns it. An invalid
// resource is still checked in so the pool replaces it.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.probeTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.pool.Checkout(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	checkout := time.Since(start)

	valid := res.Valid()
	if err := s.pool.Checkin(res); err != nil {
		// disabled mid-probe: the pool refused the resource, so drop it
		if errors.Is(err, pool.ErrPoolDisabled) {
			s.pool.Discard(res)
		}
		s.writeError(w, err)
		return
	}

	resp := ProbeResponse{
		Valid:      valid,
		CheckoutMS: float64(checkout.Microseconds()) / 1000,
		TotalMS:    float64(time.Since(start).Microseconds()) / 1000,
	}
	status := http.StatusOK
	if !valid {
		s.logger.Warn("probe found invalid resource")
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleSetEnabled(enabled bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.pool.SetEnabled(enabled); err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("pool state changed", "enabled", enabled, "remote", r.RemoteAddr)
		s.writeJSON(w, http.StatusOK, s.health())
	})
}

// handleLiveness reports that the process is serving.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness reports whether the pool can hand out resources.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	h := s.health()
	status := http.StatusOK
	if h.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, h)
}

func (s *Server) health() HealthResponse {
	h := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Enabled:   s.pool.Enabled(),
		Closed:    s.pool.Closed(),
	}
	switch {
	case h.Closed:
		h.Status = "closed"
	case !h.Enabled:
		h.Status = "disabled"
	}
	return h
}

// writeError renders err as a coded JSON error. The full error is logged;
// the client only sees the category message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	e := apperrors.FromSentinel(err)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "error", err, "code", e.Code)
	}
	s.writeJSON(w, status, apperrors.New(e.Code, e.SafeMessage()))
}

// statusFor maps an error to an HTTP status by its category. Pool errors
// wrap the category sentinels, so a breaker rejection inside a creation
// failure still reads as unavailable.
func statusFor(err error) int {
	switch {
	case apperrors.IsClosed(err):
		return http.StatusGone
	case apperrors.IsUnavailable(err), apperrors.IsTimeout(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrTransactionOpen):
		return http.StatusConflict
	case apperrors.IsConfiguration(err),
		errors.Is(err, pool.ErrForeignResource):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrResourceCreation):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
