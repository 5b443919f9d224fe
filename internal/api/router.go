package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aegis/risk-api/internal/metrics"
)

// NewRouter creates and returns a configured Chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	// ── Health check ──────────────────────────────────────────────────────────
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		mode := "degraded"
		if h.remoteEnabled {
			mode = "remote"
		}
		ok(w, map[string]string{"status": "ok", "service": "aegis-risk-api", "mode": mode})
	})

	// ── Prometheus scrape endpoint ────────────────────────────────────────────
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {

		// Assessment runs: submit, retrieve, audit artifact, distribution report
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.SubmitRun)
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/audit", h.DownloadAudit)
			r.Get("/{id}/report", h.GetRunReport)
		})

		// Per-key assessment history across runs
		r.Get("/keys/{keyID}/assessments", h.GetKeyAssessments)

		// Watchlist management
		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", h.ListWatchlist)
			r.Post("/", h.AddWatchlistEntry)
			r.Delete("/{id}", h.DeleteWatchlistEntry)
		})

		// Webhook registration
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", h.RegisterWebhook)
			r.Delete("/{id}", h.DeleteWebhook)
		})
	})

	return r
}

// requestLogger is a minimal structured-logging middleware.
// It replaces chi's default Logger to emit slog records.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
