package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vakeel/vakeel/chat"
	"github.com/vakeel/vakeel/internal/metrics"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	healthCheckTimeout  = 5 * time.Second
)

// Pinger checks the health of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router builds the HTTP handler tree for the service.
type Router struct {
	service        *chat.Service
	collector      *metrics.Collector
	logger         *zap.Logger
	checks         map[string]Pinger
	metricsHandler http.Handler
	requestTimeout time.Duration
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithHealthCheck registers a named dependency probe for /healthz.
func WithHealthCheck(name string, pinger Pinger) RouterOption {
	return func(r *Router) { r.checks[name] = pinger }
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.requestTimeout = d }
}

// WithMetricsHandler overrides the /metrics handler, typically to
// expose a non-default registry.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(r *Router) { r.metricsHandler = h }
}

// NewRouter wires the API routes. collector may be nil to disable
// request instrumentation.
func NewRouter(service *chat.Service, collector *metrics.Collector, logger *zap.Logger, opts ...RouterOption) *Router {
	r := &Router{
		service:        service,
		collector:      collector,
		logger:         logger.With(zap.String("component", "router")),
		checks:         make(map[string]Pinger),
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler returns the fully assembled HTTP handler.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/ask", rt.handleAsk)
	mux.HandleFunc("GET /api/v1/history", rt.handleHistory)
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.Handle("GET /metrics", rt.metricsHandler)
	return rt.instrument(mux)
}

func (rt *Router) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := rt.service.Ask(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "request timed out")
			return
		}
		rt.logger.Error("ask failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := rt.service.History(r.Context(), sessionID, limit)
	if err != nil {
		rt.logger.Error("history lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []chat.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    records,
	})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.checks))
	for name, pinger := range rt.checks {
		if err := pinger.Ping(ctx); err != nil {
			rt.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

// instrument wraps the handler with per-request timeout and metrics.
func (rt *Router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if rt.requestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), rt.requestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if rt.collector != nil {
			rt.collector.RecordHTTPRequest(r.Method, r.URL.Path, recorder.status, time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
