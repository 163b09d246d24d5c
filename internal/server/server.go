// Package server exposes the companion over a small JSON HTTP API, a
// websocket alert feed and the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/logging"
	"github.com/normanking/buddy/internal/metrics"
	"github.com/normanking/buddy/internal/orchestrator"
	"github.com/normanking/buddy/internal/prediction"
	"github.com/normanking/buddy/internal/profile"
)

const (
	maxBodyBytes = 64 << 10
	closeTimeout = 10 * time.Second
)

// HealthChecker reports whether a backing service is usable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	Addr    string
	Version string
	// Feed serves /v1/alerts/stream when set.
	Feed http.Handler
	// Store is probed by /healthz when set.
	Store HealthChecker
}

// Server represents the HTTP server
type Server struct {
	companion  *orchestrator.Companion
	cfg        Config
	handler    http.Handler
	httpServer *http.Server
	startTime  time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Sessions  int                      `json:"sessions"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth represents a service health status
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// SessionResponse describes an open session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	Notice    string    `json:"notice,omitempty"`

	Outlook *prediction.Forecast `json:"outlook,omitempty"`
}

// MessageRequest carries one user utterance.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the reply to one utterance.
type MessageResponse struct {
	SessionID string `json:"session_id"`
	orchestrator.Reply
}

// AlertsResponse lists a session's alerts and log.
type AlertsResponse struct {
	UserID string           `json:"user_id"`
	Alerts []alert.Alert    `json:"alerts"`
	Log    []alert.LogEntry `json:"log"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a new HTTP server
func New(c *orchestrator.Companion, cfg Config) *Server {
	s := &Server{
		companion: c,
		cfg:       cfg,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.route(mux, "POST /v1/users/{id}/session", s.openHandler)
	s.route(mux, "POST /v1/users/{id}/messages", s.messageHandler)
	s.route(mux, "POST /v1/users/{id}/session/close", s.closeHandler)
	s.route(mux, "POST /v1/users/{id}/alerts/{alertID}/ack", s.ackHandler)
	s.route(mux, "POST /v1/users/{id}/alerts/{alertID}/consent", s.consentHandler)
	s.route(mux, "GET /v1/users/{id}/alerts", s.alertsHandler)
	s.route(mux, "GET /v1/users/{id}/weekly", s.weeklyHandler)
	s.route(mux, "GET /healthz", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	if cfg.Feed != nil {
		mux.Handle("GET /v1/alerts/stream", cfg.Feed)
	}
	s.handler = mux

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every open session so their
// snapshots are written.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	closeCtx, cancel := logging.DetachContextWithTimeout(ctx, closeTimeout)
	defer cancel()
	s.companion.CloseAll(closeCtx)
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ═══════════════════════════════════════════════════════════════════════════════

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route registers h under pattern with request metrics labelled by pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		metrics.RequestCount.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// ═══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ═══════════════════════════════════════════════════════════════════════════════

func (s *Server) openHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.companion.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.companion.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	reply, err := sess.HandleMessage(r.Context(), req.Text)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{SessionID: sess.ID(), Reply: reply})
}

func (s *Server) closeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.companion.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no open session")
		return
	}

	ctx, cancel := logging.DetachContextWithTimeout(r.Context(), closeTimeout)
	defer cancel()
	res, err := sess.Close(ctx)
	if err != nil && !errors.Is(err, orchestrator.ErrPersistence) {
		s.sessionError(w, err)
		return
	}
	// A persistence failure is reported through the result's notice.
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) ackHandler(w http.ResponseWriter, r *http.Request) {
	s.alertAction(w, r, (*orchestrator.Session).Acknowledge)
}

func (s *Server) consentHandler(w http.ResponseWriter, r *http.Request) {
	s.alertAction(w, r, (*orchestrator.Session).GrantConsent)
}

func (s *Server) alertAction(w http.ResponseWriter, r *http.Request, fn func(*orchestrator.Session, string) (alert.Alert, error)) {
	sess, ok := s.companion.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no open session")
		return
	}
	a, err := fn(sess, r.PathValue("alertID"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	resp := AlertsResponse{UserID: userID, Alerts: []alert.Alert{}, Log: []alert.LogEntry{}}
	if sess, ok := s.companion.Session(userID); ok {
		resp.Alerts = append(resp.Alerts, sess.Alerts()...)
		resp.Log = append(resp.Log, sess.AlertLog()...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) weeklyHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.companion.WeeklySummary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	services := map[string]ServiceHealth{}
	status := "healthy"
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Health(r.Context()); err != nil {
			services["store"] = ServiceHealth{Healthy: false, Message: err.Error()}
			status = "degraded"
		} else {
			services["store"] = ServiceHealth{Healthy: true}
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:    status,
		Version:   s.cfg.Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Sessions:  len(s.companion.Sessions()),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// sessionError maps companion errors onto status codes.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, alert.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrSessionClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func sessionResponse(sess *orchestrator.Session) SessionResponse {
	return SessionResponse{
		SessionID: sess.ID(),
		UserID:    sess.UserID(),
		StartedAt: sess.StartedAt(),
		Notice:    sess.Notice(),
		Outlook:   sess.Outlook(),
	}
}
