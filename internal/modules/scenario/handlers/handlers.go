// Package handlers provides HTTP handlers for scenario management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/modules/scenario"
	"github.com/ericscottllc/triggergrain/internal/modules/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler handles scenario HTTP requests
type Handler struct {
	service *scenario.Service
	log     zerolog.Logger
}

// NewHandler creates a new scenario handler
func NewHandler(service *scenario.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scenario").Logger(),
	}
}

// scenarioRequest is the JSON body for scenario creation. Dates arrive as
// YYYY-MM-DD strings.
type scenarioRequest struct {
	Name               string       `json:"name"`
	Scope              domain.Scope `json:"scope"`
	StartDate          string       `json:"start_date"`
	EndDate            string       `json:"end_date"`
	ProductionEstimate float64      `json:"production_estimate"`
	Description        string       `json:"description"`
	RiskTolerance      string       `json:"risk_tolerance"`
	MarketAssumptions  string       `json:"market_assumptions"`
	Notes              string       `json:"notes"`
}

// HandleCreateScenario creates a new scenario in planning status
func (h *Handler) HandleCreateScenario(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := validation.ScenarioInput{
		Name:               req.Name,
		Scope:              req.Scope,
		ProductionEstimate: req.ProductionEstimate,
		Description:        req.Description,
		RiskTolerance:      req.RiskTolerance,
		MarketAssumptions:  req.MarketAssumptions,
		Notes:              req.Notes,
	}
	// Unparseable dates stay zero and fall out as validation errors
	if t, err := time.Parse(dateLayout, req.StartDate); err == nil {
		in.StartDate = t.UTC()
	}
	if t, err := time.Parse(dateLayout, req.EndDate); err == nil {
		in.EndDate = t.UTC()
	}

	created, err := h.service.CreateScenario(actorID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdateScenario edits a scenario's planning fields
func (h *Handler) HandleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := validation.ScenarioInput{
		Name:               req.Name,
		Scope:              req.Scope,
		ProductionEstimate: req.ProductionEstimate,
		Description:        req.Description,
		RiskTolerance:      req.RiskTolerance,
		MarketAssumptions:  req.MarketAssumptions,
		Notes:              req.Notes,
	}
	if t, err := time.Parse(dateLayout, req.StartDate); err == nil {
		in.StartDate = t.UTC()
	}
	if t, err := time.Parse(dateLayout, req.EndDate); err == nil {
		in.EndDate = t.UTC()
	}

	updated, err := h.service.UpdateScenario(chi.URLParam(r, "id"), actorID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleListScenarios lists scenarios with an optional ?status= filter
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	var status *domain.ScenarioStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.ScenarioStatus(raw)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		status = &s
	}

	scenarios, err := h.service.ListScenarios(status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if scenarios == nil {
		scenarios = []domain.Scenario{}
	}

	writeJSON(w, http.StatusOK, scenarios)
}

// HandleGetScenario returns a single scenario
func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	scn, err := h.service.GetScenario(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scn)
}

// HandleGetSummary returns the scenario summary projection
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleDeleteScenario removes a scenario and all child records
func (h *Handler) HandleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteScenario(chi.URLParam(r, "id"), actorID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetStatus applies an explicit lifecycle transition
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scn, err := h.service.SetStatus(chi.URLParam(r, "id"), actorID, domain.ScenarioStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scn)
}

// saleRequest is the JSON body for recording a virtual sale
type saleRequest struct {
	SaleDate      string   `json:"sale_date"`
	VolumeBushels float64  `json:"volume_bushels"`
	PriceType     string   `json:"price_type"`
	CashPrice     *float64 `json:"cash_price,omitempty"`
	FuturesPrice  *float64 `json:"futures_price,omitempty"`
	GrainEntryID  *string  `json:"grain_entry_id,omitempty"`
	ElevatorID    *string  `json:"elevator_id,omitempty"`
	TownID        *string  `json:"town_id,omitempty"`
	ContractMonth string   `json:"contract_month"`
}

// HandleAddSale records a virtual sale against a scenario
func (h *Handler) HandleAddSale(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := validation.SaleInput{
		VolumeBushels: req.VolumeBushels,
		PriceType:     domain.PriceType(req.PriceType),
		CashPrice:     req.CashPrice,
		FuturesPrice:  req.FuturesPrice,
		GrainEntryID:  req.GrainEntryID,
		ElevatorID:    req.ElevatorID,
		TownID:        req.TownID,
		ContractMonth: req.ContractMonth,
	}
	if t, err := time.Parse(dateLayout, req.SaleDate); err == nil {
		in.SaleDate = t.UTC()
	}

	sale, warnings, err := h.service.AddSale(chi.URLParam(r, "id"), actorID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sale":     sale,
		"warnings": warningsOrEmpty(warnings),
	})
}

// HandleDeleteSale removes a sale (delete + re-add is the correction path)
func (h *Handler) HandleDeleteSale(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteSale(chi.URLParam(r, "id"), chi.URLParam(r, "saleID"), actorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recommendationRequest is the JSON body for adding a recommendation point
type recommendationRequest struct {
	TargetDate           string  `json:"target_date"`
	TargetPercentageSold float64 `json:"target_percentage_sold"`
	Notes                string  `json:"notes"`
}

// HandleAddRecommendation adds a target-selling recommendation point
func (h *Handler) HandleAddRecommendation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := validation.RecommendationInput{
		TargetPercentageSold: req.TargetPercentageSold,
		Notes:                req.Notes,
	}
	if t, err := time.Parse(dateLayout, req.TargetDate); err == nil {
		in.TargetDate = t.UTC()
	}

	point, warnings, err := h.service.AddRecommendation(chi.URLParam(r, "id"), actorID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"recommendation": point,
		"warnings":       warningsOrEmpty(warnings),
	})
}

// HandleDeleteRecommendation removes a recommendation point
func (h *Handler) HandleDeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteRecommendation(chi.URLParam(r, "id"), chi.URLParam(r, "recID"), actorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors onto HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationFailedError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "validation failed",
			"entries": validationErr.Result.Entries,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal status transition")
	default:
		h.log.Error().Err(err).Msg("Scenario request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// requireActor extracts the explicit actor id header for mutating operations
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := r.Header.Get("X-Actor-Id")
	if actorID == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-Id header is required")
		return "", false
	}
	return actorID, true
}

func warningsOrEmpty(warnings []domain.ValidationEntry) []domain.ValidationEntry {
	if warnings == nil {
		return []domain.ValidationEntry{}
	}
	return warnings
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
