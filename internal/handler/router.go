package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the transport knobs of NewRouter.
type RouterConfig struct {
	RateLimit RateLimitConfig
	Gatherer  prometheus.Gatherer
}

// NewRouter builds the chi router with the global middleware stack and
// every API route.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))          // structured access log
	r.Use(CORS)
	r.Use(Actor)
	r.Use(RateLimit(cfg.RateLimit))

	r.Get("/health", h.HealthCheck)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/participants", h.ListParticipants)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}/status", h.TransitionEvent)
			r.Post("/{id}/join", h.Join)
			r.Post("/{id}/leave", h.Leave)
			r.Post("/{id}/redistribute", h.Redistribute)
		})
	})

	r.Route("/eco-actions", func(r chi.Router) {
		r.Get("/ranking", h.Ranking)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)
			r.Get("/my-actions", h.MyActions)
			r.Get("/stats", h.Stats)
			r.Post("/", h.RecordAction)
			r.Post("/{id}/correct", h.CorrectAction)
		})
	})

	r.Get("/users/{id}/points", h.UserPoints)

	return r
}
