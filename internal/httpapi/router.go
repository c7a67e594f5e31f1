// Package httpapi exposes the research service over HTTP: job submission,
// polling, deletion, the archive listing, and operational endpoints.
package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"alpaca/backend/internal/config"
)

func NewRouter(cfg config.Config, handler *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/settings", handler.settings)

		r.Route("/research", func(r chi.Router) {
			r.Post("/", handler.createResearch)
			r.Get("/", handler.listResearch)
			r.Get("/archive", handler.listArchive)
			r.Get("/{id}", handler.getResearch)
			r.Get("/{id}/progress", handler.getProgress)
			r.Delete("/{id}", handler.deleteResearch)
		})
	})

	return r
}
