// Package handlers provides HTTP handlers for recommendation timelines.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler serves read access to recommendation timelines
type Handler struct {
	recommendations *timeline.RecommendationRepository
	log             zerolog.Logger
}

// NewHandler creates a new timeline handler
func NewHandler(recommendations *timeline.RecommendationRepository, log zerolog.Logger) *Handler {
	return &Handler{
		recommendations: recommendations,
		log:             log.With().Str("handler", "timeline").Logger(),
	}
}

// HandleListRecommendations returns a scenario's recommendation points. An
// optional ?as_of=YYYY-MM-DD query adds the interpolated target for that date.
func (h *Handler) HandleListRecommendations(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "id")

	points, err := h.recommendations.GetByScenario(scenarioID)
	if err != nil {
		h.log.Error().Err(err).Str("scenario_id", scenarioID).Msg("Failed to list recommendations")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []domain.RecommendationPoint{}
	}

	resp := map[string]interface{}{
		"recommendations": points,
	}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		resp["as_of"] = raw
		resp["current_target"] = timeline.CurrentTarget(points, asOf.UTC())
		resp["interpolated_target"] = timeline.Interpolate(points, asOf.UTC())
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
