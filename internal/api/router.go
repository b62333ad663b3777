package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a ticket, not a bearer token.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/metrics", s.handleMetrics)

			r.Route("/flows", func(r chi.Router) {
				r.Get("/", s.handleListFlows)
				r.Post("/", s.handleStartFlow)
				r.Get("/history", s.handleListFlowHistory)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetFlow)
					r.Post("/", s.handleConfigureFlow)
					r.Delete("/", s.handleAbortFlow)
					r.Post("/ignore", s.handleIgnoreFlow)
				})
			})

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)
				r.Get("/{id}", s.handleGetEntry)
				r.Delete("/{id}", s.handleDeleteEntry)
			})

			r.Get("/discovery", s.handleListDiscovery)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
