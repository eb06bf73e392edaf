package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/freeeve/diplomat/internal/auth"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/internal/service"
)

// ChannelHandler handles external chat channel bindings. A bound bridge
// authenticates with its bind token, never with a user JWT.
type ChannelHandler struct {
	channelRepo repository.ChannelRepository
	gameSvc     *service.GameService
	orderSvc    *service.OrderService
}

// NewChannelHandler creates a ChannelHandler.
func NewChannelHandler(channelRepo repository.ChannelRepository, gameSvc *service.GameService, orderSvc *service.OrderService) *ChannelHandler {
	return &ChannelHandler{channelRepo: channelRepo, gameSvc: gameSvc, orderSvc: orderSvc}
}

type bindChannelRequest struct {
	ChannelRef string `json:"channel_ref" validate:"required,max=128"`
}

// BindChannel handles POST /api/v1/games/{id}/channels. Creator only.
// The bind token is returned once, at creation.
func (h *ChannelHandler) BindChannel(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req bindChannelRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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

	channel, err := h.channelRepo.Bind(r.Context(), gameID, req.ChannelRef, uuid.NewString())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

// ListChannels handles GET /api/v1/games/{id}/channels. Tokens are
// stripped; they are only ever shown at bind time.
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	channels, err := h.channelRepo.ListByGame(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range channels {
		channels[i].BindToken = ""
	}
	if channels == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// UnbindChannel handles DELETE /api/v1/games/{id}/channels/{channelId}.
// Creator only.
func (h *ChannelHandler) UnbindChannel(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	channelID := r.PathValue("channelId")
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

	if err := h.channelRepo.Unbind(r.Context(), gameID, channelID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbound"})
}

// ChannelState handles GET /api/v1/channel/state?token=... This is the
// bridge's pull surface: the bind token resolves to its game's public
// snapshot without a user session.
func (h *ChannelHandler) ChannelState(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}

	channel, err := h.channelRepo.FindByToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if channel == nil {
		writeError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	view, err := h.orderSvc.GetState(r.Context(), channel.GameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}
