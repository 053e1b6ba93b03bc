package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers market data routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/market/entries", h.HandleListEntries)
	r.Get("/api/market/latest", h.HandleLatestPrice)
	r.Get("/api/reference/{kind}", h.HandleListReference)
}
