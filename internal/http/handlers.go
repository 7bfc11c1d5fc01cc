package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/net4255/visitlog/internal/config"
	"github.com/net4255/visitlog/internal/core"
	"github.com/net4255/visitlog/internal/metrics"
	"github.com/net4255/visitlog/internal/store"
)

type Router struct {
	cfg      config.Config
	visits   *core.VisitLogger
	limiter  *rateLimiter
	hostname func() (string, error)
}

// NewRouter builds the HTTP surface. visits may be nil when no store is
// configured; pages then render without visit history. The rate limiter's
// janitor stops when ctx is done.
func NewRouter(ctx context.Context, cfg config.Config, visits *core.VisitLogger) http.Handler {
	r := chi.NewRouter()
	// Request ids and access logging, then metrics and recovery
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(countRequests)
	r.Use(middleware.Recoverer)

	api := &Router{
		cfg:      cfg,
		visits:   visits,
		limiter:  newRateLimiter(cfg.APIRateRPS, cfg.APIRateBurst),
		hostname: os.Hostname,
	}
	go api.limiter.Run(ctx)

	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)

	// Metrics
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	r.MethodFunc(http.MethodGet, "/", api.handleHome)
	r.MethodFunc(http.MethodGet, "/api/db", api.handleVisits)

	return r
}

func (rt *Router) handleHome(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	now := time.Now()
	if rt.visits != nil {
		now = rt.visits.Now()
	}

	host, err := rt.hostname()
	if err != nil {
		host = "unknown"
	}

	p := page{
		Project:  rt.cfg.Project,
		Name:     rt.cfg.Name,
		Version:  rt.cfg.Version,
		Hostname: host,
		ClientIP: ip,
		Now:      now.Format("2006-01-02 15:04:05 MST"),
		Mode:     rt.cfg.RenderMode,
		NoStore:  rt.visits == nil,
	}

	if rt.visits != nil {
		// best effort: the page renders whether or not the write lands
		_ = rt.visits.Record(r.Context(), ip, now)

		p.Limit = rt.visits.DefaultLimit()
		if rt.cfg.RenderMode == config.RenderServer {
			recent, err := rt.visits.RecentVisits(r.Context(), p.Limit)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("recent visits")
				p.StoreError = err.Error()
			}
			p.Visits = recent
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTmpl.Execute(w, p); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
	}
}

type errorResp struct {
	Error string `json:"error"`
}

func (rt *Router) handleVisits(w http.ResponseWriter, r *http.Request) {
	if rt.visits == nil {
		writeJSON(w, errorResp{Error: "database disabled"}, http.StatusServiceUnavailable)
		return
	}

	ip := clientIP(r)
	if !rt.limiter.Allow(ip) {
		metrics.RateLimited.Inc()
		writeJSON(w, errorResp{Error: "rate limit exceeded"}, http.StatusTooManyRequests)
		return
	}

	limit := rt.visits.DefaultLimit()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, errorResp{Error: "limit must be a non-negative integer"}, http.StatusBadRequest)
			return
		}
		limit = n
	}

	if res := rt.visits.RecordNow(r.Context(), ip); !res.OK() {
		writeJSON(w, errorResp{Error: res.Err.Error()}, http.StatusInternalServerError)
		return
	}

	recent, err := rt.visits.RecentVisits(r.Context(), limit)
	if err != nil {
		writeJSON(w, errorResp{Error: err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, recent, http.StatusOK)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if rt.visits != nil {
		if err := rt.visits.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("readiness")
			http.Error(w, store.ErrStoreUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
