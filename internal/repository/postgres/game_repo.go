package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/repository"
)

// The seven powers of the standard map, one slot row each per game.
var allPowers = []string{"austria", "england", "france", "germany", "italy", "russia", "turkey"}

const gameColumns = `id, name, map_name, creator_id, status, turn, year, season, phase, winner, supply_centers, created_at, started_at, finished_at`

// GameRepo handles game, power-slot, and unit database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create inserts a new game along with its seven vacant power slots.
func (r *GameRepo) Create(ctx context.Context, name, mapName, creatorID string) (*model.Game, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var g model.Game
	err = tx.QueryRowContext(ctx,
		`INSERT INTO games (name, map_name, creator_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, map_name, creator_id, status, turn, year, season, phase, created_at`,
		name, mapName, creatorID,
	).Scan(&g.ID, &g.Name, &g.MapName, &g.CreatorID, &g.Status, &g.Turn, &g.Year, &g.Season, &g.Phase, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO game_powers (game_id, power) VALUES ($1, $2)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert slot: %w", err)
	}
	defer stmt.Close()

	for _, power := range allPowers {
		if _, err := stmt.ExecContext(ctx, g.ID, power); err != nil {
			return nil, fmt.Errorf("insert slot %s: %w", power, err)
		}
		g.Powers = append(g.Powers, model.GamePower{GameID: g.ID, Power: power})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create game: %w", err)
	}
	return &g, nil
}

// FindByID returns a game by ID with its power slots.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}

	powers, err := r.ListPowers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Powers = powers
	return g, nil
}

// ListPowers returns a game's power slots in power-name order.
func (r *GameRepo) ListPowers(ctx context.Context, gameID string) ([]model.GamePower, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, power, user_id, active, joined_at
		 FROM game_powers WHERE game_id = $1 ORDER BY power`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list powers: %w", err)
	}
	defer rows.Close()

	var powers []model.GamePower
	for rows.Next() {
		var p model.GamePower
		var userID sql.NullString
		if err := rows.Scan(&p.GameID, &p.Power, &userID, &p.Active, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan power slot: %w", err)
		}
		p.UserID = userID.String
		powers = append(powers, p)
	}
	return powers, rows.Err()
}

// ListForming returns games still collecting players, newest first.
func (r *GameRepo) ListForming(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'forming' ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("list forming games: %w", err)
	}
	return scanGames(rows)
}

// ListByUser returns all games a user holds a slot in or created.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+gameColumns+` FROM games g
		 LEFT JOIN game_powers gp ON g.id = gp.game_id AND gp.user_id = $1
		 WHERE gp.user_id = $1 OR g.creator_id = $1
		 ORDER BY created_at DESC LIMIT 50`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user games: %w", err)
	}
	return scanGames(rows)
}

// ListCompleted returns completed games, most recent first.
func (r *GameRepo) ListCompleted(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'completed' ORDER BY finished_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("list completed games: %w", err)
	}
	return scanGames(rows)
}

// SearchCompleted returns completed games whose name matches the search term (case-insensitive).
func (r *GameRepo) SearchCompleted(ctx context.Context, search string) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE status = 'completed' AND name ILIKE '%' || $1 || '%'
		 ORDER BY finished_at DESC LIMIT 100`, search)
	if err != nil {
		return nil, fmt.Errorf("search completed games: %w", err)
	}
	return scanGames(rows)
}

// ListActive returns all active games, including their power slots.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	games, err := scanGames(rows)
	if err != nil {
		return nil, err
	}
	for i := range games {
		powers, err := r.ListPowers(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Powers = powers
	}
	return games, nil
}

// ClaimPower assigns a vacant slot to a user. Returns
// repository.ErrSlotTaken when the slot already has a user.
func (r *GameRepo) ClaimPower(ctx context.Context, gameID, power, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE game_powers SET user_id = $3, active = true, joined_at = now()
		 WHERE game_id = $1 AND power = $2 AND user_id IS NULL`,
		gameID, power, userID)
	if err != nil {
		return fmt.Errorf("claim power: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim power rows: %w", err)
	}
	if n == 0 {
		return repository.ErrSlotTaken
	}
	return nil
}

// ReleasePower vacates whichever slot the user holds in the game.
func (r *GameRepo) ReleasePower(ctx context.Context, gameID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_powers SET user_id = NULL, active = false
		 WHERE game_id = $1 AND user_id = $2`,
		gameID, userID)
	if err != nil {
		return fmt.Errorf("release power: %w", err)
	}
	return nil
}

// SetActive flips a forming game to active.
func (r *GameRepo) SetActive(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'active', started_at = now() WHERE id = $1 AND status = 'forming'`,
		gameID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

// SaveState writes the denormalized board columns and replaces the
// game's unit rows in one transaction.
func (r *GameRepo) SaveState(ctx context.Context, game *model.Game, units []model.Unit) error {
	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx,
			`UPDATE games SET status = $1, turn = $2, year = $3, season = $4, phase = $5, supply_centers = $6
			 WHERE id = $7`,
			game.Status, game.Turn, game.Year, game.Season, game.Phase, game.SupplyCenters, game.ID)
		if err != nil {
			return fmt.Errorf("update game state: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE game_id = $1`, game.ID); err != nil {
			return fmt.Errorf("clear units: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO units (game_id, kind, power, province, coast, dislodged, attacker_origin)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("prepare insert unit: %w", err)
		}
		defer stmt.Close()

		for _, u := range units {
			if _, err := stmt.ExecContext(ctx, game.ID, u.Kind, u.Power, u.Province, u.Coast, u.Dislodged, u.AttackerOrigin); err != nil {
				return fmt.Errorf("insert unit: %w", err)
			}
		}
		return tx.Commit()
	})
}

// UnitsByGame returns the game's current unit rows.
func (r *GameRepo) UnitsByGame(ctx context.Context, gameID string) ([]model.Unit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, kind, power, province, coast, dislodged, attacker_origin
		 FROM units WHERE game_id = $1 ORDER BY power, province`, gameID)
	if err != nil {
		return nil, fmt.Errorf("units by game: %w", err)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.GameID, &u.Kind, &u.Power, &u.Province, &u.Coast, &u.Dislodged, &u.AttackerOrigin); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// SetCompleted marks a game completed. An empty winner records a draw.
func (r *GameRepo) SetCompleted(ctx context.Context, gameID, winner string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'completed', winner = $1, finished_at = now() WHERE id = $2`,
		nullStr(winner), gameID)
	if err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

// Delete removes a game and all associated data (cascades to slots, units, phases, orders, messages).
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(s rowScanner) (*model.Game, error) {
	var g model.Game
	var winner, centers sql.NullString
	err := s.Scan(&g.ID, &g.Name, &g.MapName, &g.CreatorID, &g.Status, &g.Turn, &g.Year, &g.Season, &g.Phase,
		&winner, &centers, &g.CreatedAt, &g.StartedAt, &g.FinishedAt)
	if err != nil {
		return nil, err
	}
	g.Winner = winner.String
	if centers.Valid {
		g.SupplyCenters = json.RawMessage(centers.String)
	}
	return &g, nil
}

func scanGames(rows *sql.Rows) ([]model.Game, error) {
	defer rows.Close()
	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}
