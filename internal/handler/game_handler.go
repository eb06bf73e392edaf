package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/freeeve/diplomat/internal/auth"
	"github.com/freeeve/diplomat/internal/service"
)

// GameHandler handles game lifecycle endpoints.
type GameHandler struct {
	gameSvc  *service.GameService
	phaseSvc *service.PhaseService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService, phaseSvc *service.PhaseService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc, phaseSvc: phaseSvc}
}

type createGameRequest struct {
	Name string `json:"name" validate:"required,max=80"`
	Map  string `json:"map" validate:"omitempty,oneof=standard"`
}

type joinGameRequest struct {
	Power string `json:"power" validate:"omitempty,oneof=austria england france germany italy russia turkey"`
}

type replacePlayerRequest struct {
	Power string `json:"power" validate:"required,oneof=austria england france germany italy russia turkey"`
}

type setDeadlineRequest struct {
	Deadline time.Time `json:"deadline" validate:"required"`
}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req createGameRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameSvc.CreateGame(r.Context(), req.Name, req.Map, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrUnknownMap) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// ListGames handles GET /api/v1/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	filter := r.URL.Query().Get("filter")
	search := r.URL.Query().Get("search")
	games, err := h.gameSvc.ListGames(r.Context(), userID, filter, search)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.gameSvc.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// JoinGame handles POST /api/v1/games/{id}/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req joinGameRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	power, err := h.gameSvc.JoinGame(r.Context(), gameID, userID, req.Power)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrGameNotForming) || errors.Is(err, service.ErrGameFull) ||
			errors.Is(err, service.ErrAlreadyJoined) || errors.Is(err, service.ErrInvalidPower) ||
			errors.Is(err, service.ErrPowerTaken) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined", "power": power})
}

// StartGame handles POST /api/v1/games/{id}/start
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	game, err := h.gameSvc.StartGame(r.Context(), gameID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrNotCreator) {
			status = http.StatusForbidden
		} else if errors.Is(err, service.ErrGameNotForming) || errors.Is(err, service.ErrNoPlayers) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// ReplacePlayer handles POST /api/v1/games/{id}/replace
func (h *GameHandler) ReplacePlayer(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req replacePlayerRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gameSvc.ReplacePlayer(r.Context(), gameID, req.Power, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrGameCompleted) || errors.Is(err, service.ErrSlotAssigned) ||
			errors.Is(err, service.ErrAlreadyJoined) || errors.Is(err, service.ErrInvalidPower) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replaced", "power": req.Power})
}

// QuitGame handles POST /api/v1/games/{id}/quit
func (h *GameHandler) QuitGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.gameSvc.QuitGame(r.Context(), gameID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrNotInGame) {
			status = http.StatusForbidden
		} else if errors.Is(err, service.ErrGameCompleted) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "quit"})
}

// DeleteGame handles DELETE /api/v1/games/{id}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.gameSvc.DeleteGame(r.Context(), gameID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrGameNotForming) {
			status = http.StatusBadRequest
		} else if errors.Is(err, service.ErrNotCreator) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// VoteDraw handles POST /api/v1/games/{id}/draw
func (h *GameHandler) VoteDraw(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	votes, err := h.phaseSvc.VoteDraw(r.Context(), gameID, userID)
	if err != nil {
		writeError(w, drawVoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "voted", "votes": votes})
}

// RetractDrawVote handles DELETE /api/v1/games/{id}/draw
func (h *GameHandler) RetractDrawVote(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.phaseSvc.RetractDrawVote(r.Context(), gameID, userID); err != nil {
		writeError(w, drawVoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retracted"})
}

func drawVoteStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameNotActive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ProcessPhase handles POST /api/v1/games/{id}/process. Creator only:
// resolves the current phase immediately with holds for missing orders.
func (h *GameHandler) ProcessPhase(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if game.CreatorID != userID {
		writeError(w, http.StatusForbidden, "only the creator can do that")
		return
	}

	if err := h.phaseSvc.ForceProcess(r.Context(), gameID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNoActivePhase) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// SetDeadline handles PUT /api/v1/games/{id}/deadline. Creator only.
func (h *GameHandler) SetDeadline(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req setDeadlineRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Deadline.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "deadline must be in the future")
		return
	}

	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if game.CreatorID != userID {
		writeError(w, http.StatusForbidden, "only the creator can do that")
		return
	}

	if err := h.phaseSvc.SetDeadline(r.Context(), gameID, req.Deadline); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotActive) || errors.Is(err, service.ErrNoActivePhase) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "deadline": req.Deadline.Format(time.RFC3339)})
}
