package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/diplomat/internal/model"
)

// ChannelRepo handles external chat channel bindings.
type ChannelRepo struct {
	db *sql.DB
}

// NewChannelRepo creates a ChannelRepo.
func NewChannelRepo(db *sql.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// Bind attaches an external channel to a game. Rebinding the same
// channel rotates its token.
func (r *ChannelRepo) Bind(ctx context.Context, gameID, channelRef, bindToken string) (*model.Channel, error) {
	var c model.Channel
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO channels (game_id, channel_ref, bind_token)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (game_id, channel_ref)
		 DO UPDATE SET bind_token = EXCLUDED.bind_token
		 RETURNING id, game_id, channel_ref, bind_token, created_at`,
		gameID, channelRef, bindToken,
	).Scan(&c.ID, &c.GameID, &c.ChannelRef, &c.BindToken, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("bind channel: %w", err)
	}
	return &c, nil
}

// ListByGame returns a game's channel bindings.
func (r *ChannelRepo) ListByGame(ctx context.Context, gameID string) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, channel_ref, bind_token, created_at
		 FROM channels WHERE game_id = $1 ORDER BY created_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.GameID, &c.ChannelRef, &c.BindToken, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// FindByToken looks up a binding by its token.
func (r *ChannelRepo) FindByToken(ctx context.Context, bindToken string) (*model.Channel, error) {
	var c model.Channel
	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, channel_ref, bind_token, created_at
		 FROM channels WHERE bind_token = $1`, bindToken,
	).Scan(&c.ID, &c.GameID, &c.ChannelRef, &c.BindToken, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find channel by token: %w", err)
	}
	return &c, nil
}

// Unbind removes a channel binding.
func (r *ChannelRepo) Unbind(ctx context.Context, gameID, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM channels WHERE game_id = $1 AND id = $2`, gameID, channelID)
	if err != nil {
		return fmt.Errorf("unbind channel: %w", err)
	}
	return nil
}
