package handler

import "github.com/freeeve/diplomat/internal/service"

// Notify implements service.Notifier, fanning service events out to the
// game's WebSocket subscribers. Must not block: BroadcastToGame drops on
// full send buffers rather than waiting.
func (h *Hub) Notify(e service.Event) {
	h.BroadcastToGame(e.GameID, WSEvent{
		Type:   e.Kind,
		GameID: e.GameID,
		Data:   e,
	})
}
