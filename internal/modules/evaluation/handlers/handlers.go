// Package handlers provides HTTP handlers for scenario evaluation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/modules/evaluation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles evaluation HTTP requests
type Handler struct {
	engine *evaluation.Engine
	repo   *evaluation.Repository
	log    zerolog.Logger
}

// NewHandler creates a new evaluation handler
func NewHandler(engine *evaluation.Engine, repo *evaluation.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("handler", "evaluation").Logger(),
	}
}

// HandleEvaluate runs an evaluation. A final evaluation moves a closed
// scenario into evaluated status atomically with the stored result.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get("X-Actor-Id")
	if actorID == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-Id header is required")
		return
	}

	var req struct {
		IsFinal bool `json:"is_final"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	eval, err := h.engine.Evaluate(chi.URLParam(r, "id"), req.IsFinal, actorID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, domain.ErrIllegalTransition):
			writeError(w, http.StatusConflict, "scenario is not closed")
		default:
			h.log.Error().Err(err).Msg("Evaluation failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, eval)
}

// HandleListEvaluations returns a scenario's evaluation history, newest first
func (h *Handler) HandleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.repo.GetByScenario(chi.URLParam(r, "id"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list evaluations")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evals == nil {
		evals = []domain.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
