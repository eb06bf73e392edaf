package handler

import (
	"net/http"

	"github.com/freeeve/diplomat/internal/auth"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/internal/service"
)

// MessageHandler handles in-game press endpoints.
type MessageHandler struct {
	messageRepo repository.MessageRepository
	phaseRepo   repository.PhaseRepository
	hub         *Hub
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(messageRepo repository.MessageRepository, phaseRepo repository.PhaseRepository, hub *Hub) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo, phaseRepo: phaseRepo, hub: hub}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"omitempty,max=64"`
	Content     string `json:"content" validate:"required,max=2000"`
}

// ListMessages handles GET /api/v1/games/{id}/messages. Private press is
// returned only to its sender and recipient.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	messages, err := h.messageRepo.ListByGame(r.Context(), gameID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/v1/games/{id}/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req sendMessageRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Stamp the message with the phase it was sent during.
	phaseID := ""
	if phase, err := h.phaseRepo.CurrentPhase(r.Context(), gameID); err == nil && phase != nil {
		phaseID = phase.ID
	}

	msg, err := h.messageRepo.Create(r.Context(), gameID, userID, req.RecipientID, req.Content, phaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Private press reaches sender and recipient only; public press goes
	// to the whole game channel.
	event := WSEvent{Type: service.EventMessage, GameID: gameID, Data: msg}
	if req.RecipientID != "" {
		h.hub.BroadcastToUser(req.RecipientID, event)
		h.hub.BroadcastToUser(userID, event)
	} else {
		h.hub.BroadcastToGame(gameID, event)
	}

	writeJSON(w, http.StatusCreated, msg)
}
