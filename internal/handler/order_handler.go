package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/auth"
	"github.com/freeeve/diplomat/internal/logger"
	"github.com/freeeve/diplomat/internal/service"
)

// OrderHandler handles order submission, queries, and ready flags.
type OrderHandler struct {
	orderSvc *service.OrderService
	phaseSvc *service.PhaseService
	hub      *Hub
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, phaseSvc *service.PhaseService, hub *Hub) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, phaseSvc: phaseSvc, hub: hub}
}

type submitOrdersRequest struct {
	Orders  string `json:"orders" validate:"required,max=4096"`
	PhaseID string `json:"phase_id" validate:"omitempty,max=64"`
}

// SubmitOrders handles POST /api/v1/games/{id}/orders. The body carries
// the textual order sheet; the response is one receipt per parsed order.
func (h *OrderHandler) SubmitOrders(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req submitOrdersRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipts, err := h.orderSvc.SubmitOrders(r.Context(), gameID, userID, req.PhaseID, req.Orders)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGameNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrNotInGame) {
			status = http.StatusForbidden
		} else if errors.Is(err, service.ErrGameNotActive) || errors.Is(err, service.ErrNoActivePhase) {
			status = http.StatusBadRequest
		} else if errors.Is(err, service.ErrPhaseClosed) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	accepted := 0
	for _, rc := range receipts {
		if rc.Accepted {
			accepted++
		}
	}
	reqLog := logger.ForRequest(r.Context())
	reqLog.Info().Str("gameId", gameID).
		Int("orders", len(receipts)).Int("accepted", accepted).
		Msg("Orders submitted")

	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

// ClearOrders handles DELETE /api/v1/games/{id}/orders
func (h *OrderHandler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.orderSvc.ClearOrders(r.Context(), gameID, userID); err != nil {
		writeError(w, orderStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetOrders handles GET /api/v1/games/{id}/orders. Only the caller's own
// orders come back; other powers' submissions stay hidden until the
// phase resolves.
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	orders, err := h.orderSvc.GetOrders(r.Context(), gameID, userID)
	if err != nil {
		writeError(w, orderStatus(err), err.Error())
		return
	}
	if orders == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// LegalOrders handles GET /api/v1/games/{id}/orders/legal?province=par
func (h *OrderHandler) LegalOrders(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	province := r.URL.Query().Get("province")
	if province == "" {
		writeError(w, http.StatusBadRequest, "province is required")
		return
	}

	orders, err := h.orderSvc.LegalOrders(r.Context(), gameID, userID, province)
	if err != nil {
		writeError(w, orderStatus(err), err.Error())
		return
	}
	if orders == nil {
		orders = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"province": province, "orders": orders})
}

// GetState handles GET /api/v1/games/{id}/state
func (h *OrderHandler) GetState(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderSvc.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// OrderHistory handles GET /api/v1/games/{id}/orders/history?from=&to=
// Resolved phases only; the open phase never appears.
func (h *OrderHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	from := atoiDefault(r.URL.Query().Get("from"), 0)
	to := atoiDefault(r.URL.Query().Get("to"), 0)

	history, err := h.orderSvc.GetOrderHistory(r.Context(), gameID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// MarkReady handles POST /api/v1/games/{id}/orders/ready
func (h *OrderHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	readyCount, totalPowers, err := h.orderSvc.MarkReady(r.Context(), gameID, userID)
	if err != nil {
		writeError(w, orderStatus(err), err.Error())
		return
	}

	h.hub.BroadcastToGame(gameID, WSEvent{
		Type:   EventPlayerReady,
		GameID: gameID,
		Data: map[string]any{
			"ready_count":  readyCount,
			"total_powers": totalPowers,
		},
	})

	// Early resolution runs detached: the request context dies with this
	// handler, and the check re-verifies readiness under the game lock.
	if int(readyCount) >= totalPowers {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.phaseSvc.ProcessIfAllReady(ctx, gameID); err != nil {
				log.Error().Err(err).Str("gameId", gameID).Msg("Early resolution failed")
			}
		}()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ready_count":  readyCount,
		"total_powers": totalPowers,
		"all_ready":    int(readyCount) >= totalPowers,
	})
}

// UnmarkReady handles DELETE /api/v1/games/{id}/orders/ready
func (h *OrderHandler) UnmarkReady(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.orderSvc.UnmarkReady(r.Context(), gameID, userID); err != nil {
		writeError(w, orderStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "not_ready"})
}

func orderStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameNotActive), errors.Is(err, service.ErrNoActivePhase):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
