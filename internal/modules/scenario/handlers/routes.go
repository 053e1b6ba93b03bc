package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers scenario routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/scenarios", func(r chi.Router) {
		r.Post("/", h.HandleCreateScenario)
		r.Get("/", h.HandleListScenarios)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetScenario)
			r.Put("/", h.HandleUpdateScenario)
			r.Delete("/", h.HandleDeleteScenario)
			r.Get("/summary", h.HandleGetSummary)
			r.Post("/status", h.HandleSetStatus)

			r.Post("/sales", h.HandleAddSale)
			r.Delete("/sales/{saleID}", h.HandleDeleteSale)

			r.Post("/recommendations", h.HandleAddRecommendation)
			r.Delete("/recommendations/{recID}", h.HandleDeleteRecommendation)
		})
	})
}
