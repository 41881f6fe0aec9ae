package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes. Everything except the health
// check requires a verified caller.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.health)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Post("/resolve", s.resolveSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Post("/turn", s.turn) // SSE response
			})
		})

		r.Post("/title", s.generateTitle)
		r.Get("/sessions", s.listSessions)
		r.Get("/tool-records/{sessionID}", s.getToolRecords)

		// Event feed (SSE)
		r.Get("/events", s.events)
	})
}
