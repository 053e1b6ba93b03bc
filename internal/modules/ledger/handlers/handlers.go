// Package handlers provides HTTP handlers for the virtual-sales ledger.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves read access to the sales ledger
type Handler struct {
	sales *ledger.SaleRepository
	log   zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(sales *ledger.SaleRepository, log zerolog.Logger) *Handler {
	return &Handler{
		sales: sales,
		log:   log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleListSales returns a scenario's sales with aggregate figures
func (h *Handler) HandleListSales(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "id")

	sales, err := h.sales.GetByScenario(scenarioID)
	if err != nil {
		h.log.Error().Err(err).Str("scenario_id", scenarioID).Msg("Failed to list sales")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sales == nil {
		sales = []domain.VirtualSale{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sales":                  sales,
		"total_volume":           ledger.TotalVolume(sales),
		"weighted_average_price": ledger.WeightedAveragePrice(sales),
		"total_revenue":          ledger.TotalRevenue(sales),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
