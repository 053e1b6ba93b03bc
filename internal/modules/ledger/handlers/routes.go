package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers ledger routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/scenarios/{id}/sales", h.HandleListSales)
}
