package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/diplomat/internal/model"
)

// PhaseRepo handles phase and order database operations.
type PhaseRepo struct {
	db *sql.DB
}

// NewPhaseRepo creates a PhaseRepo.
func NewPhaseRepo(db *sql.DB) *PhaseRepo {
	return &PhaseRepo{db: db}
}

// CreatePhase inserts a new phase.
func (r *PhaseRepo) CreatePhase(ctx context.Context, gameID string, turn, year int, season, kind string, stateBefore json.RawMessage, deadline time.Time) (*model.Phase, error) {
	var p model.Phase
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx,
			`INSERT INTO phases (game_id, turn, year, season, kind, state_before, deadline)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, game_id, turn, year, season, kind, state_before, deadline, created_at`,
			gameID, turn, year, season, kind, stateBefore, deadline,
		).Scan(&p.ID, &p.GameID, &p.Turn, &p.Year, &p.Season, &p.Kind, &p.StateBefore, &p.Deadline, &p.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create phase: %w", err)
	}
	return &p, nil
}

// CurrentPhase returns the latest unresolved phase for a game.
func (r *PhaseRepo) CurrentPhase(ctx context.Context, gameID string) (*model.Phase, error) {
	var p model.Phase
	var stateAfter sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, turn, year, season, kind, state_before, state_after, deadline, reminder_sent_at, resolved_at, created_at
		 FROM phases WHERE game_id = $1 AND resolved_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, gameID,
	).Scan(&p.ID, &p.GameID, &p.Turn, &p.Year, &p.Season, &p.Kind, &p.StateBefore, &stateAfter,
		&p.Deadline, &p.ReminderSentAt, &p.ResolvedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current phase: %w", err)
	}
	if stateAfter.Valid {
		p.StateAfter = json.RawMessage(stateAfter.String)
	}
	return &p, nil
}

// ListPhases returns a game's phases in play order, optionally bounded
// by turn. A zero bound means unbounded on that side.
func (r *PhaseRepo) ListPhases(ctx context.Context, gameID string, fromTurn, toTurn int) ([]model.Phase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, year, season, kind, state_before, state_after, deadline, reminder_sent_at, resolved_at, created_at
		 FROM phases
		 WHERE game_id = $1 AND ($2 = 0 OR turn >= $2) AND ($3 = 0 OR turn <= $3)
		 ORDER BY turn,
		   CASE kind WHEN 'movement' THEN 1 WHEN 'retreat' THEN 2 WHEN 'adjustment' THEN 3 ELSE 4 END`,
		gameID, fromTurn, toTurn,
	)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p model.Phase
		var stateAfter sql.NullString
		if err := rows.Scan(&p.ID, &p.GameID, &p.Turn, &p.Year, &p.Season, &p.Kind, &p.StateBefore, &stateAfter,
			&p.Deadline, &p.ReminderSentAt, &p.ResolvedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		if stateAfter.Valid {
			p.StateAfter = json.RawMessage(stateAfter.String)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// ResolvePhase marks a phase as resolved and stores the resulting state.
func (r *PhaseRepo) ResolvePhase(ctx context.Context, phaseID string, stateAfter json.RawMessage) error {
	err := withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE phases SET state_after = $1, resolved_at = now() WHERE id = $2`,
			stateAfter, phaseID)
		return err
	})
	if err != nil {
		return fmt.Errorf("resolve phase: %w", err)
	}
	return nil
}

// SetDeadline moves a phase's deadline. The reminder re-arms so a
// pushed-back deadline gets a fresh warning.
func (r *PhaseRepo) SetDeadline(ctx context.Context, phaseID string, deadline time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE phases SET deadline = $1, reminder_sent_at = NULL WHERE id = $2 AND resolved_at IS NULL`,
		deadline, phaseID)
	if err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	return nil
}

// UpsertOrder inserts an order, replacing any earlier order for the
// same (phase, power, location).
func (r *PhaseRepo) UpsertOrder(ctx context.Context, o model.Order) error {
	err := withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO orders (phase_id, power, unit_type, location, action, target, aux_unit_type, aux_loc, raw_text)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (phase_id, power, location)
			 DO UPDATE SET unit_type = EXCLUDED.unit_type, action = EXCLUDED.action, target = EXCLUDED.target,
			   aux_unit_type = EXCLUDED.aux_unit_type, aux_loc = EXCLUDED.aux_loc, raw_text = EXCLUDED.raw_text,
			   outcome = NULL, created_at = now()`,
			o.PhaseID, o.Power, o.UnitType, o.Location, o.Action,
			nullStr(o.Target), nullStr(o.AuxUnitType), nullStr(o.AuxLoc), o.Text)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

// ClearOrders removes a power's orders for a phase.
func (r *PhaseRepo) ClearOrders(ctx context.Context, phaseID, power string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE phase_id = $1 AND power = $2`, phaseID, power)
	if err != nil {
		return fmt.Errorf("clear orders: %w", err)
	}
	return nil
}

// OrdersByPhase returns all orders for a phase.
func (r *PhaseRepo) OrdersByPhase(ctx context.Context, phaseID string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE phase_id = $1 ORDER BY power, location`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("orders by phase: %w", err)
	}
	return scanOrders(rows)
}

// OrdersByPower returns one power's orders for a phase.
func (r *PhaseRepo) OrdersByPower(ctx context.Context, phaseID, power string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE phase_id = $1 AND power = $2 ORDER BY location`, phaseID, power)
	if err != nil {
		return nil, fmt.Errorf("orders by power: %w", err)
	}
	return scanOrders(rows)
}

// SaveResults replaces the phase's orders with the adjudicated set,
// outcomes included. Defaulted orders get rows too, so the history is
// complete even for powers that never submitted.
func (r *PhaseRepo) SaveResults(ctx context.Context, phaseID string, orders []model.Order) error {
	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE phase_id = $1`, phaseID); err != nil {
			return fmt.Errorf("clear phase orders: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO orders (phase_id, power, unit_type, location, action, target, aux_unit_type, aux_loc, raw_text, outcome)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
		if err != nil {
			return fmt.Errorf("prepare insert order: %w", err)
		}
		defer stmt.Close()

		for _, o := range orders {
			_, err := stmt.ExecContext(ctx, phaseID, o.Power, o.UnitType, o.Location, o.Action,
				nullStr(o.Target), nullStr(o.AuxUnitType), nullStr(o.AuxLoc), o.Text, nullStr(o.Outcome))
			if err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
		}
		return tx.Commit()
	})
}

// ListExpired returns the latest unresolved phase per active game whose
// deadline has passed, oldest deadline first. DISTINCT ON avoids
// returning orphaned old phases from previous race conditions.
func (r *PhaseRepo) ListExpired(ctx context.Context) ([]model.Phase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, year, season, kind, state_before, deadline, created_at FROM (
		   SELECT DISTINCT ON (p.game_id) p.id, p.game_id, p.turn, p.year, p.season, p.kind, p.state_before, p.deadline, p.created_at
		   FROM phases p
		   JOIN games g ON g.id = p.game_id
		   WHERE p.resolved_at IS NULL AND p.deadline < now() AND g.status = 'active'
		   ORDER BY p.game_id, p.created_at DESC
		 ) expired ORDER BY deadline`)
	if err != nil {
		return nil, fmt.Errorf("list expired phases: %w", err)
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p model.Phase
		if err := rows.Scan(&p.ID, &p.GameID, &p.Turn, &p.Year, &p.Season, &p.Kind, &p.StateBefore, &p.Deadline, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired phase: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// ListReminderDue returns unresolved phases of active games whose
// deadline falls within the window and that have no reminder sent yet.
func (r *PhaseRepo) ListReminderDue(ctx context.Context, within time.Duration) ([]model.Phase, error) {
	cutoff := time.Now().Add(within)
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (p.game_id) p.id, p.game_id, p.turn, p.year, p.season, p.kind, p.state_before, p.deadline, p.created_at
		 FROM phases p
		 JOIN games g ON g.id = p.game_id
		 WHERE p.resolved_at IS NULL AND p.reminder_sent_at IS NULL
		   AND p.deadline > now() AND p.deadline <= $1
		   AND g.status = 'active'
		 ORDER BY p.game_id, p.created_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list reminder due: %w", err)
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p model.Phase
		if err := rows.Scan(&p.ID, &p.GameID, &p.Turn, &p.Year, &p.Season, &p.Kind, &p.StateBefore, &p.Deadline, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder phase: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// MarkReminderSent stamps a phase so the deadline reminder fires once.
func (r *PhaseRepo) MarkReminderSent(ctx context.Context, phaseID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE phases SET reminder_sent_at = now() WHERE id = $1`, phaseID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

const orderColumns = `id, phase_id, power, unit_type, location, action, target, aux_unit_type, aux_loc, raw_text, outcome, created_at`

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var target, auxUnitType, auxLoc, outcome sql.NullString
		if err := rows.Scan(&o.ID, &o.PhaseID, &o.Power, &o.UnitType, &o.Location, &o.Action,
			&target, &auxUnitType, &auxLoc, &o.Text, &outcome, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Target = target.String
		o.AuxUnitType = auxUnitType.String
		o.AuxLoc = auxLoc.String
		o.Outcome = outcome.String
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
