package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers evaluation routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/scenarios/{id}/evaluate", h.HandleEvaluate)
	r.Get("/api/scenarios/{id}/evaluations", h.HandleListEvaluations)
}
