package service

import "github.com/google/uuid"

// Event kinds delivered through the Notifier hook.
const (
	EventTurnProcessed    = "TURN_PROCESSED"
	EventDeadlineReminder = "DEADLINE_REMINDER"
	EventGameCreated      = "GAME_CREATED"
	EventGameJoined       = "GAME_JOINED"
	EventPlayerReplaced   = "PLAYER_REPLACED"
	EventGameCompleted    = "GAME_COMPLETED"
	EventMessage          = "MESSAGE"
)

// Event is one outbound notification. Delivery is at-least-once: ID
// makes duplicates detectable, and (GameID, Turn, Phase) is the
// idempotency key for turn-scoped events.
type Event struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	GameID  string         `json:"game_id"`
	Turn    int            `json:"turn,omitempty"`
	Phase   string         `json:"phase,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier delivers committed events to the client layer (WebSocket hub,
// chat bridge). Implementations must not block: events are emitted after
// the causing transaction commits, and a failing or slow consumer must
// not stall game processing.
type Notifier interface {
	Notify(e Event)
}

// NoopNotifier discards all events.
type NoopNotifier struct{}

func (NoopNotifier) Notify(Event) {}

func newEvent(kind, gameID string, turn int, phase string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		GameID:  gameID,
		Turn:    turn,
		Phase:   phase,
		Payload: payload,
	}
}
