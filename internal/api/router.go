package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/whisper-batch/worker/internal/api/handlers"
	"github.com/whisper-batch/worker/internal/api/middleware"
	"github.com/whisper-batch/worker/internal/events"
	"github.com/whisper-batch/worker/internal/history"
)

// NewRouter builds the status server: a read-only window into the running
// batch for local UIs. The store may be nil when history is disabled.
func NewRouter(bus *events.Bus, store *history.Store) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler()))

	statusHandler := handlers.NewStatusHandler(bus, store)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", statusHandler.Health)
		r.Get("/events", statusHandler.Events)
		r.Get("/runs", statusHandler.ListRuns)
		r.Get("/runs/{id}/files", statusHandler.RunFiles)
	})

	return r
}
