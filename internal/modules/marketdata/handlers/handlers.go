// Package handlers provides HTTP handlers for market data access.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/modules/marketdata"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler serves market entries and reference data
type Handler struct {
	repo *marketdata.Repository
	log  zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(repo *marketdata.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleListEntries returns price points in a date range, narrowed by any
// scope dimensions present in the query string
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(dateLayout, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	scope := domain.Scope{
		CropID:     optionalParam(q.Get("crop_id")),
		ClassID:    optionalParam(q.Get("class_id")),
		RegionID:   optionalParam(q.Get("region_id")),
		TownID:     optionalParam(q.Get("town_id")),
		ElevatorID: optionalParam(q.Get("elevator_id")),
	}

	points, err := h.repo.Fetch(scope, start.UTC(), end.UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch market entries")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, points)
}

// HandleLatestPrice returns the most recent price point for a scope
func (h *Handler) HandleLatestPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := domain.Scope{
		CropID:     optionalParam(q.Get("crop_id")),
		ClassID:    optionalParam(q.Get("class_id")),
		RegionID:   optionalParam(q.Get("region_id")),
		TownID:     optionalParam(q.Get("town_id")),
		ElevatorID: optionalParam(q.Get("elevator_id")),
	}

	point, err := h.repo.LatestPrice(scope)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch latest price")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if point == nil {
		writeError(w, http.StatusNotFound, "no price data for scope")
		return
	}

	writeJSON(w, http.StatusOK, point)
}

// HandleListReference returns one kind of reference data (crops, classes,
// regions, towns, elevators)
func (h *Handler) HandleListReference(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListReference(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
