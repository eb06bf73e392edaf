package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/freeeve/diplomat/internal/model"
)

// ErrSlotTaken is returned by ClaimPower when the requested power slot
// is already assigned to another user.
var ErrSlotTaken = errors.New("power slot already assigned")

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines game, power-slot, and unit data operations.
type GameRepository interface {
	Create(ctx context.Context, name, mapName, creatorID string) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListForming(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListCompleted(ctx context.Context) ([]model.Game, error)
	SearchCompleted(ctx context.Context, search string) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	// ClaimPower assigns a vacant power slot to a user. Returns
	// ErrSlotTaken if the slot is already assigned.
	ClaimPower(ctx context.Context, gameID, power, userID string) error
	// ReleasePower vacates whichever slot the user holds, making it
	// claimable again.
	ReleasePower(ctx context.Context, gameID, userID string) error
	SetActive(ctx context.Context, gameID string) error
	// SaveState writes the denormalized board columns and replaces the
	// game's unit rows in one transaction.
	SaveState(ctx context.Context, game *model.Game, units []model.Unit) error
	UnitsByGame(ctx context.Context, gameID string) ([]model.Unit, error)
	SetCompleted(ctx context.Context, gameID, winner string) error
	Delete(ctx context.Context, gameID string) error
}

// PhaseRepository defines phase and order data operations.
type PhaseRepository interface {
	CreatePhase(ctx context.Context, gameID string, turn, year int, season, kind string, stateBefore json.RawMessage, deadline time.Time) (*model.Phase, error)
	CurrentPhase(ctx context.Context, gameID string) (*model.Phase, error)
	// ListPhases returns phases for a game, oldest first, optionally
	// bounded by turn (0 means unbounded).
	ListPhases(ctx context.Context, gameID string, fromTurn, toTurn int) ([]model.Phase, error)
	ResolvePhase(ctx context.Context, phaseID string, stateAfter json.RawMessage) error
	SetDeadline(ctx context.Context, phaseID string, deadline time.Time) error
	// UpsertOrder inserts an order, replacing any earlier order for the
	// same (phase, power, location).
	UpsertOrder(ctx context.Context, o model.Order) error
	ClearOrders(ctx context.Context, phaseID, power string) error
	OrdersByPhase(ctx context.Context, phaseID string) ([]model.Order, error)
	OrdersByPower(ctx context.Context, phaseID, power string) ([]model.Order, error)
	// SaveResults replaces the phase's orders with the adjudicated set,
	// outcomes included.
	SaveResults(ctx context.Context, phaseID string, orders []model.Order) error
	// ListExpired returns unresolved phases of active games whose
	// deadline has passed, oldest deadline first.
	ListExpired(ctx context.Context) ([]model.Phase, error)
	// ListReminderDue returns unresolved phases within the reminder
	// window that have not had a reminder sent.
	ListReminderDue(ctx context.Context, within time.Duration) ([]model.Phase, error)
	MarkReminderSent(ctx context.Context, phaseID string) error
}

// MessageRepository defines message data operations.
type MessageRepository interface {
	Create(ctx context.Context, gameID, senderID, recipientID, content, phaseID string) (*model.Message, error)
	ListByGame(ctx context.Context, gameID, userID string) ([]model.Message, error)
}

// ChannelRepository defines external chat channel bindings.
type ChannelRepository interface {
	Bind(ctx context.Context, gameID, channelRef, bindToken string) (*model.Channel, error)
	ListByGame(ctx context.Context, gameID string) ([]model.Channel, error)
	FindByToken(ctx context.Context, bindToken string) (*model.Channel, error)
	Unbind(ctx context.Context, gameID, channelID string) error
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	MarkReady(ctx context.Context, gameID, power string) error
	UnmarkReady(ctx context.Context, gameID, power string) error
	ReadyCount(ctx context.Context, gameID string) (int64, error)
	ReadyPowers(ctx context.Context, gameID string) ([]string, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTimer(ctx context.Context, gameID string) error
	AddDrawVote(ctx context.Context, gameID, power string) error
	RemoveDrawVote(ctx context.Context, gameID, power string) error
	DrawVoteCount(ctx context.Context, gameID string) (int64, error)
	DrawVotePowers(ctx context.Context, gameID string) ([]string, error)
	ClearPhaseData(ctx context.Context, gameID string) error
	DeleteGameData(ctx context.Context, gameID string) error
}
