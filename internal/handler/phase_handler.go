package handler

import (
	"net/http"

	"github.com/freeeve/diplomat/internal/repository"
)

// PhaseHandler handles phase listing endpoints.
type PhaseHandler struct {
	phaseRepo repository.PhaseRepository
}

// NewPhaseHandler creates a PhaseHandler.
func NewPhaseHandler(phaseRepo repository.PhaseRepository) *PhaseHandler {
	return &PhaseHandler{phaseRepo: phaseRepo}
}

// ListPhases handles GET /api/v1/games/{id}/phases?from=&to=
func (h *PhaseHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	from := atoiDefault(r.URL.Query().Get("from"), 0)
	to := atoiDefault(r.URL.Query().Get("to"), 0)

	phases, err := h.phaseRepo.ListPhases(r.Context(), gameID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if phases == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, phases)
}

// CurrentPhase handles GET /api/v1/games/{id}/phases/current
func (h *PhaseHandler) CurrentPhase(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	phase, err := h.phaseRepo.CurrentPhase(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if phase == nil {
		writeError(w, http.StatusNotFound, "no active phase")
		return
	}
	writeJSON(w, http.StatusOK, phase)
}
