package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/rightsdesk/internal/api/middleware"
	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit
	Metrics   *metrics.Metrics

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	ListAppsHandler    http.HandlerFunc
	ListPromptsHandler http.HandlerFunc

	CreateSessionHandler http.HandlerFunc
	GetSessionHandler    http.HandlerFunc
	CloseSessionHandler  http.HandlerFunc

	SubmitMessageHandler http.HandlerFunc
	TranscriptHandler    http.HandlerFunc

	SubmitAssetHandler http.HandlerFunc
	ListAssetsHandler  http.HandlerFunc

	GetRunHandler    http.HandlerFunc
	CancelRunHandler http.HandlerFunc

	EventsHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Instrument(deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "Method not allowed", nil)
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", orNotImplemented(deps.HealthHandler))

		r.Get("/catalog/apps", orNotImplemented(deps.ListAppsHandler))
		r.Get("/catalog/prompts", orNotImplemented(deps.ListPromptsHandler))

		r.Route("/sessions", func(r chi.Router) {
			r.With(deps.RateLimit.Limit).Post("/", orNotImplemented(deps.CreateSessionHandler))

			// Session routes are limited per session.
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Use(deps.RateLimit.Limit)

				r.Get("/", orNotImplemented(deps.GetSessionHandler))
				r.Delete("/", orNotImplemented(deps.CloseSessionHandler))

				r.Post("/messages", orNotImplemented(deps.SubmitMessageHandler))
				r.Get("/messages", orNotImplemented(deps.TranscriptHandler))

				r.Post("/assets", orNotImplemented(deps.SubmitAssetHandler))
				r.Get("/assets", orNotImplemented(deps.ListAssetsHandler))

				r.Get("/runs/{runID}", orNotImplemented(deps.GetRunHandler))
				r.Delete("/runs/{runID}", orNotImplemented(deps.CancelRunHandler))

				r.Get("/events", orNotImplemented(deps.EventsHandler))
			})
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, response.CodeNotImplemented, "Endpoint not yet implemented", nil)
	}
}
