package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/pixelrelay/internal/api/middleware"
	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	// RateLimit is optional; nil disables per-client limiting.
	RateLimit *mw.RateLimit
	Metrics   *metrics.Collector

	HealthHandler     http.HandlerFunc
	AnalyzeHandler    http.HandlerFunc
	GenerateHandler   http.HandlerFunc
	StatusHandler     http.HandlerFunc
	FetchImageHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.CORS)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics(deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", deps.Metrics.Handler())

	// Proxy endpoints
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Options("/api/analyze", mw.Preflight(http.MethodPost))

		r.Post("/api/generate", orNotImplemented(deps.GenerateHandler))
		r.Options("/api/generate", mw.Preflight(http.MethodPost))

		r.Get("/api/status", orNotImplemented(deps.StatusHandler))
		r.Options("/api/status", mw.Preflight(http.MethodGet))

		r.Post("/api/fetch-image", orNotImplemented(deps.FetchImageHandler))
		r.Options("/api/fetch-image", mw.Preflight(http.MethodPost))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "Endpoint not yet implemented", nil)
	}
}
