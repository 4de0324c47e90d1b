package web

import (
	"github.com/rohanthewiz/rweb"

	"planroom/models"
	"planroom/web/api"
)

// setupRoutes configures all hub routes. Everything is JSON; there is no
// page rendering here — the planner UI is a separate client of this API.
func setupRoutes(s *rweb.Server, cfg *models.Config) {
	// Health check — used by sync clients before doing real work
	s.Get("/api/v1/health", api.Health)

	// Authentication
	s.Post("/api/v1/auth/register", api.Register)
	s.Post("/api/v1/auth/login", api.Login)

	// Planner entry documents, keyed by (authenticated user, date, page).
	// GET returns the document or 404; PUT replaces it whole — clients
	// perform their own read-merge-write for field-level updates.
	s.Get("/api/v1/entries/:page", api.GetEntry)
	s.Put("/api/v1/entries/:page", api.PutEntry)

	// Selah AI assistant proxy
	selah := api.NewSelahHandler(cfg)
	s.Post("/api/v1/selah", selah.Chat)
}
