package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game represents a Diplomacy game. Turn, Year, Season, Phase, and
// SupplyCenters mirror the live state on every save, so a game is
// recoverable from Postgres alone if the cache is lost.
type Game struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	MapName       string          `json:"map_name"`
	CreatorID     string          `json:"creator_id"`
	Status        string          `json:"status"` // forming, active, completed
	Turn          int             `json:"turn"`
	Year          int             `json:"year,omitempty"`
	Season        string          `json:"season,omitempty"`
	Phase         string          `json:"phase,omitempty"`
	Winner        string          `json:"winner,omitempty"`
	SupplyCenters json.RawMessage `json:"supply_centers,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Powers        []GamePower     `json:"powers,omitempty"`
	ReadyCount    int             `json:"ready_count,omitempty"`
	DrawVoteCount int             `json:"draw_vote_count,omitempty"`
}

// GamePower is one of the seven power slots of a game. UserID is empty
// while the slot is vacant. Active goes false when the player quits or
// is dropped, which makes the slot claimable again.
type GamePower struct {
	GameID   string     `json:"game_id"`
	Power    string     `json:"power"`
	UserID   string     `json:"user_id,omitempty"`
	Active   bool       `json:"active"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

// Unit is one on-board unit, denormalized from the live state on every
// save. Dislodged units carry the origin of the attack that displaced
// them so legal retreats can be recomputed.
type Unit struct {
	GameID         string `json:"game_id"`
	Kind           string `json:"kind"` // army, fleet
	Power          string `json:"power"`
	Province       string `json:"province"`
	Coast          string `json:"coast,omitempty"`
	Dislodged      bool   `json:"dislodged,omitempty"`
	AttackerOrigin string `json:"attacker_origin,omitempty"`
}

// Phase represents a game phase (movement, retreat, or adjustment).
// The row with a nil ResolvedAt is the game's current phase.
type Phase struct {
	ID             string          `json:"id"`
	GameID         string          `json:"game_id"`
	Turn           int             `json:"turn"`
	Year           int             `json:"year"`
	Season         string          `json:"season"`
	Kind           string          `json:"kind"`
	StateBefore    json.RawMessage `json:"state_before"`
	StateAfter     json.RawMessage `json:"state_after,omitempty"`
	Deadline       time.Time       `json:"deadline"`
	ReminderSentAt *time.Time      `json:"reminder_sent_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Order is one submitted order. Text is the canonical rendering, which
// the parser accepts back; the remaining fields are the parsed form for
// query. Outcome is empty until the phase resolves. Location is the bare
// province code of the ordered unit (the build site for builds), so the
// (phase, power, location) upsert key is one order per unit.
type Order struct {
	ID          string    `json:"id"`
	PhaseID     string    `json:"phase_id"`
	Power       string    `json:"power"`
	UnitType    string    `json:"unit_type"`
	Location    string    `json:"location"`
	Action      string    `json:"action"`
	Target      string    `json:"target,omitempty"`
	AuxUnitType string    `json:"aux_unit_type,omitempty"`
	AuxLoc      string    `json:"aux_loc,omitempty"`
	Text        string    `json:"text"`
	Outcome     string    `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel binds a game to an external chat channel for notification
// fan-out. The bind token authenticates the channel's client.
type Channel struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	ChannelRef string    `json:"channel_ref"`
	BindToken  string    `json:"bind_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message represents an in-game diplomacy message.
type Message struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = public broadcast
	Content     string    `json:"content"`
	PhaseID     string    `json:"phase_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
