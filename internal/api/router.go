package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/queue", s.handleGetDeviceQueue)
			})
		})

		r.Route("/timeline", func(r chi.Router) {
			r.Use(middleware.RequestSize(maxTimelineBody))
			r.Post("/state", s.handleTimelineState)
			r.Post("/clear-future", s.handleClearFuture)
		})
	})

	return r
}
