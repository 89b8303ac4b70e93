package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-sorter/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	peopleHandler := handlers.NewPeopleHandler(s.deps.References)
	runsHandler := handlers.NewRunsHandler(s.config, s.jobManager, s.deps.NewSorter, s.deps.Runs, s.deps.Metrics)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event streams stay open for the whole run and skip the timeout.
		r.Get("/runs/{jobId}/events", runsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/people", peopleHandler.List)

			r.Post("/runs", runsHandler.Start)
			r.Get("/runs", runsHandler.List)
			r.Get("/runs/{jobId}", runsHandler.Status)
			r.Delete("/runs/{jobId}", runsHandler.Cancel)
		})
	})
}
