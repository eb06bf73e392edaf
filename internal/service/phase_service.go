package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/config"
	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/pkg/diplomacy"
)

// PhaseService drives phase resolution: collecting orders, running the
// adjudicator, persisting results and history, and advancing the game
// under its per-game lock.
type PhaseService struct {
	cfg       *config.Config
	gameRepo  repository.GameRepository
	phaseRepo repository.PhaseRepository
	cache     repository.GameCache
	notifier  Notifier

	// gameLocks serializes resolution per game. The keyspace listener,
	// the poller, and early-resolution callers can all fire for the same
	// deadline; without the lock they would double-process the phase.
	gameLocks sync.Map
}

// NewPhaseService creates a PhaseService. A nil notifier disables events.
func NewPhaseService(cfg *config.Config, gameRepo repository.GameRepository, phaseRepo repository.PhaseRepository, cache repository.GameCache, notifier Notifier) *PhaseService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &PhaseService{
		cfg:       cfg,
		gameRepo:  gameRepo,
		phaseRepo: phaseRepo,
		cache:     cache,
		notifier:  notifier,
	}
}

// gameLock returns the mutex for a given game ID.
func (s *PhaseService) gameLock(gameID string) *sync.Mutex {
	v, _ := s.gameLocks.LoadOrStore(gameID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ProcessPhase resolves the current phase of a game if its deadline has
// passed. Safe to call from concurrent triggers; the per-game lock makes
// it idempotent, and the deadline re-check under the lock stops the
// second caller.
func (s *PhaseService) ProcessPhase(ctx context.Context, gameID string) error {
	return s.processPhase(ctx, gameID, false)
}

// ForceProcess resolves the current phase immediately, deadline or not.
// Unsubmitted units default to hold as on a normal expiry.
func (s *PhaseService) ForceProcess(ctx context.Context, gameID string) error {
	return s.processPhase(ctx, gameID, true)
}

// ProcessIfAllReady resolves the current phase before its deadline when
// every power that can still act has marked ready. Vacant and eliminated
// powers never hold a phase up.
func (s *PhaseService) ProcessIfAllReady(ctx context.Context, gameID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusActive) {
		return nil
	}

	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil || phase == nil {
		return err
	}

	var st diplomacy.State
	if err := json.Unmarshal(phase.StateBefore, &st); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	readyList, err := s.cache.ReadyPowers(ctx, gameID)
	if err != nil {
		return fmt.Errorf("ready powers: %w", err)
	}
	ready := make(map[string]bool, len(readyList))
	for _, p := range readyList {
		ready[p] = true
	}

	for _, gp := range game.Powers {
		if gp.UserID == "" || !st.Alive(diplomacy.Power(gp.Power)) {
			continue
		}
		if !ready[gp.Power] {
			return nil
		}
	}

	log.Info().Str("gameId", gameID).Msg("All powers ready, resolving early")
	return s.processPhase(ctx, gameID, true)
}

// processPhase is the single resolution path. All adjudication happens
// in memory before the first write, so a panic inside the engine leaves
// the phase unresolved and the game untouched for manual recovery.
func (s *PhaseService) processPhase(ctx context.Context, gameID string, early bool) (err error) {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > s.cfg.ProcessBudget {
			log.Warn().Str("gameId", gameID).Dur("elapsed", elapsed).
				Dur("budget", s.cfg.ProcessBudget).Msg("Phase processing exceeded budget")
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("gameId", gameID).Interface("panic", r).
				Bytes("stack", debug.Stack()).Msg("Phase processing panicked, game left untouched")
			err = fmt.Errorf("phase processing panic: %v", r)
		}
	}()

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("find game: %w", err)
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusActive) {
		log.Info().Str("gameId", gameID).Str("status", game.Status).Msg("Skipping resolution for non-active game")
		return nil
	}

	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return fmt.Errorf("get current phase: %w", err)
	}
	if phase == nil {
		return ErrNoActivePhase
	}

	if !early && time.Now().Before(phase.Deadline) {
		log.Debug().Str("gameId", gameID).Time("deadline", phase.Deadline).Msg("Deadline not reached, skipping")
		return nil
	}

	log.Info().Str("gameId", gameID).Str("phaseId", phase.ID).Bool("early", early).
		Int("turn", phase.Turn).Int("year", phase.Year).
		Str("season", phase.Season).Str("kind", phase.Kind).
		Msg("Processing phase")

	stateJSON, cerr := s.cache.GetGameState(ctx, gameID)
	if cerr != nil || stateJSON == nil {
		stateJSON = phase.StateBefore
	}
	var st diplomacy.State
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	rows, err := s.phaseRepo.OrdersByPhase(ctx, phase.ID)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	m := diplomacy.Standard()
	kind := diplomacy.PhaseKind(phase.Kind)
	orders := parseOrderRows(m, rows, kind)

	var results []diplomacy.ResolvedOrder
	switch kind {
	case diplomacy.PhaseMovement:
		res := diplomacy.ResolveOrders(m, &st, orders)
		diplomacy.ApplyResult(m, &st, res)
		results = res.Orders
	case diplomacy.PhaseRetreat:
		results = diplomacy.ResolveRetreats(m, &st, orders)
		diplomacy.ApplyRetreats(m, &st, results)
	case diplomacy.PhaseAdjustment:
		results = diplomacy.ResolveAdjustments(m, &st, orders)
		diplomacy.ApplyAdjustments(&st, results)
	default:
		return fmt.Errorf("unknown phase kind %q", phase.Kind)
	}

	return s.finishPhase(ctx, game, phase, &st, resolvedToModel(phase.ID, results))
}

// finishPhase persists the resolved phase, advances the state, and
// either completes the game or opens the next phase. Notifications go
// out only after everything is committed.
func (s *PhaseService) finishPhase(ctx context.Context, game *model.Game, phase *model.Phase, st *diplomacy.State, results []model.Order) error {
	// Fall conquests must show in this phase's closing snapshot even
	// when retreats are still pending; Advance recomputes again at the
	// season boundary.
	if st.Season == diplomacy.Fall && st.Phase != diplomacy.PhaseAdjustment {
		st.RecomputeSupplyCenters()
	}

	stateAfter, err := marshalState(st)
	if err != nil {
		return err
	}
	if err := s.phaseRepo.SaveResults(ctx, phase.ID, results); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if err := s.phaseRepo.ResolvePhase(ctx, phase.ID, stateAfter); err != nil {
		return fmt.Errorf("resolve phase: %w", err)
	}

	diplomacy.Advance(st)

	if winner, won := diplomacy.Victor(st); won {
		return s.completeGame(ctx, game, phase.Turn, phase.Kind, st, string(winner), "victory")
	}
	if diplomacy.YearLimitReached(st) {
		return s.completeGame(ctx, game, phase.Turn, phase.Kind, st, "", "year_limit")
	}

	// An adjustment phase with nothing due resolves as a no-op; go
	// straight to the next Spring instead of opening an empty phase.
	if st.Phase == diplomacy.PhaseAdjustment && !st.AdjustmentRequired() {
		log.Info().Str("gameId", game.ID).Int("year", st.Year).Msg("No adjustments due, skipping to Spring")
		diplomacy.Advance(st)
	}

	newStateJSON, err := marshalState(st)
	if err != nil {
		return err
	}

	newTurn := phase.Turn + 1
	deadline := time.Now().Add(s.cfg.DeadlineFor(string(st.Phase)))
	next, err := s.phaseRepo.CreatePhase(ctx, game.ID, newTurn, st.Year, string(st.Season), string(st.Phase), newStateJSON, deadline)
	if err != nil {
		return fmt.Errorf("create next phase: %w", err)
	}

	game.Turn = newTurn
	applyStateToGame(game, st)
	if err := s.gameRepo.SaveState(ctx, game, unitRows(game.ID, st)); err != nil {
		return fmt.Errorf("save game state: %w", err)
	}

	// Cache writes are projections of committed rows; a cold cache is
	// rebuilt on demand, so failures here must not unwind the resolution.
	if err := s.cache.ClearPhaseData(ctx, game.ID); err != nil {
		log.Warn().Err(err).Str("gameId", game.ID).Msg("Failed to clear phase cache")
	}
	if err := s.cache.SetGameState(ctx, game.ID, newStateJSON); err != nil {
		log.Warn().Err(err).Str("gameId", game.ID).Msg("Failed to cache new state")
	}
	if err := s.cache.SetTimer(ctx, game.ID, deadline); err != nil {
		log.Warn().Err(err).Str("gameId", game.ID).Msg("Failed to set phase timer")
	}

	s.autoReady(ctx, game, st)

	log.Info().Str("gameId", game.ID).Int("turn", newTurn).
		Int("year", st.Year).Str("season", string(st.Season)).Str("kind", string(st.Phase)).
		Time("deadline", deadline).Int("units", len(st.Units)).
		Str("board", st.Board()).
		Msg("Advanced to next phase")

	s.notifier.Notify(newEvent(EventTurnProcessed, game.ID, phase.Turn, phase.Kind, map[string]any{
		"year":          phase.Year,
		"season":        phase.Season,
		"next_phase_id": next.ID,
		"next_kind":     string(st.Phase),
		"next_deadline": deadline.Format(time.RFC3339),
	}))
	return nil
}

// completeGame persists the final position, marks the game completed,
// and clears its live cache. An empty winner records a draw.
func (s *PhaseService) completeGame(ctx context.Context, game *model.Game, turn int, phaseKind string, st *diplomacy.State, winner, reason string) error {
	applyStateToGame(game, st)
	game.Status = string(diplomacy.StatusCompleted)
	if err := s.gameRepo.SaveState(ctx, game, unitRows(game.ID, st)); err != nil {
		return fmt.Errorf("save final state: %w", err)
	}
	if err := s.gameRepo.SetCompleted(ctx, game.ID, winner); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	if err := s.cache.DeleteGameData(ctx, game.ID); err != nil {
		log.Warn().Err(err).Str("gameId", game.ID).Msg("Failed to clear cache for completed game")
	}

	log.Info().Str("gameId", game.ID).Str("winner", winner).Str("reason", reason).Msg("Game completed")

	s.notifier.Notify(newEvent(EventGameCompleted, game.ID, turn, phaseKind, map[string]any{
		"winner": winner,
		"reason": reason,
	}))
	return nil
}

// autoReady marks powers that cannot act as ready: vacant slots and
// eliminated powers never hold up a phase.
func (s *PhaseService) autoReady(ctx context.Context, game *model.Game, st *diplomacy.State) {
	assigned := make(map[string]bool, len(game.Powers))
	for _, gp := range game.Powers {
		if gp.UserID != "" {
			assigned[gp.Power] = true
		}
	}
	for _, p := range diplomacy.AllPowers() {
		if assigned[string(p)] && st.Alive(p) {
			continue
		}
		if err := s.cache.MarkReady(ctx, game.ID, string(p)); err != nil {
			log.Warn().Err(err).Str("gameId", game.ID).Str("power", string(p)).Msg("Failed to auto-ready power")
		}
	}
}

// SetDeadline overrides the current phase's deadline, re-arming its
// reminder and retiming the expiry key.
func (s *PhaseService) SetDeadline(ctx context.Context, gameID string, deadline time.Time) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusActive) {
		return ErrGameNotActive
	}
	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return err
	}
	if phase == nil {
		return ErrNoActivePhase
	}
	if err := s.phaseRepo.SetDeadline(ctx, phase.ID, deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if err := s.cache.SetTimer(ctx, gameID, deadline); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to retime phase timer")
	}
	log.Info().Str("gameId", gameID).Str("phaseId", phase.ID).Time("deadline", deadline).Msg("Deadline overridden")
	return nil
}

// VoteDraw records the caller's draw vote and returns the vote count.
// When every surviving assigned power has voted, the game completes as
// a draw.
func (s *PhaseService) VoteDraw(ctx context.Context, gameID, userID string) (int64, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if game == nil {
		return 0, ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusActive) {
		return 0, ErrGameNotActive
	}
	power, ok := powerOf(game, userID)
	if !ok {
		return 0, ErrNotInGame
	}

	if err := s.cache.AddDrawVote(ctx, gameID, string(power)); err != nil {
		return 0, fmt.Errorf("add draw vote: %w", err)
	}
	count, err := s.cache.DrawVoteCount(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("draw vote count: %w", err)
	}

	st, err := s.loadState(ctx, gameID)
	if err != nil {
		return count, err
	}
	votesList, err := s.cache.DrawVotePowers(ctx, gameID)
	if err != nil {
		return count, fmt.Errorf("draw vote powers: %w", err)
	}
	voted := make(map[string]bool, len(votesList))
	for _, p := range votesList {
		voted[p] = true
	}
	for _, gp := range game.Powers {
		if gp.UserID == "" || !st.Alive(diplomacy.Power(gp.Power)) {
			continue
		}
		if !voted[gp.Power] {
			return count, nil
		}
	}

	log.Info().Str("gameId", gameID).Msg("All surviving powers voted for a draw")
	return count, s.completeGame(ctx, game, game.Turn, game.Phase, st, "", "draw")
}

// RetractDrawVote withdraws the caller's draw vote.
func (s *PhaseService) RetractDrawVote(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusActive) {
		return ErrGameNotActive
	}
	power, ok := powerOf(game, userID)
	if !ok {
		return ErrNotInGame
	}
	return s.cache.RemoveDrawVote(ctx, gameID, string(power))
}

// RecoverActiveGames rebuilds cache state and timers for every active
// game after a restart. Postgres is the source of truth; Redis carries
// only rebuildable projections of it.
func (s *PhaseService) RecoverActiveGames(ctx context.Context) error {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	if len(games) == 0 {
		log.Info().Msg("No active games to recover")
		return nil
	}
	log.Info().Int("count", len(games)).Msg("Recovering active games")

	for i := range games {
		game := &games[i]
		phase, err := s.phaseRepo.CurrentPhase(ctx, game.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to load current phase during recovery")
			continue
		}
		if phase == nil {
			log.Warn().Str("gameId", game.ID).Msg("Active game has no current phase, skipping")
			continue
		}

		if err := s.cache.SetGameState(ctx, game.ID, phase.StateBefore); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore cached state")
			continue
		}
		if time.Now().Before(phase.Deadline) {
			if err := s.cache.SetTimer(ctx, game.ID, phase.Deadline); err != nil {
				log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore timer")
			}
		}

		var st diplomacy.State
		if err := json.Unmarshal(phase.StateBefore, &st); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to unmarshal state during recovery")
			continue
		}
		s.autoReady(ctx, game, &st)

		log.Info().Str("gameId", game.ID).Int("turn", phase.Turn).
			Int("year", phase.Year).Str("season", phase.Season).Str("kind", phase.Kind).
			Time("deadline", phase.Deadline).Msg("Recovered game")
	}
	return nil
}

// loadState returns the live board, preferring the cache over the
// current phase row.
func (s *PhaseService) loadState(ctx context.Context, gameID string) (*diplomacy.State, error) {
	stateJSON, err := s.cache.GetGameState(ctx, gameID)
	if err != nil || stateJSON == nil {
		phase, perr := s.phaseRepo.CurrentPhase(ctx, gameID)
		if perr != nil {
			return nil, perr
		}
		if phase == nil {
			return nil, ErrNoActivePhase
		}
		stateJSON = phase.StateBefore
	}
	var st diplomacy.State
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

// parseOrderRows turns stored order rows back into engine orders by
// reparsing their canonical text.
func parseOrderRows(m *diplomacy.Map, rows []model.Order, kind diplomacy.PhaseKind) []diplomacy.Order {
	orders := make([]diplomacy.Order, 0, len(rows))
	for _, row := range rows {
		parsed, errs := m.ParseOrders(row.Text, diplomacy.Power(row.Power), kind)
		if len(errs) > 0 || len(parsed) != 1 {
			log.Warn().Str("phaseId", row.PhaseID).Str("power", row.Power).
				Str("text", row.Text).Msg("Stored order no longer parses, dropping")
			continue
		}
		orders = append(orders, parsed[0])
	}
	return orders
}

// powerOf resolves a user's power binding in a game.
func powerOf(game *model.Game, userID string) (diplomacy.Power, bool) {
	for _, gp := range game.Powers {
		if gp.UserID != "" && gp.UserID == userID {
			return diplomacy.Power(gp.Power), true
		}
	}
	return diplomacy.Neutral, false
}

// marshalState serializes a board snapshot for storage.
func marshalState(st *diplomacy.State) (json.RawMessage, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return b, nil
}

// applyStateToGame mirrors the live board onto the game's denormalized
// columns.
func applyStateToGame(game *model.Game, st *diplomacy.State) {
	game.Year = st.Year
	game.Season = string(st.Season)
	game.Phase = string(st.Phase)
	centers, _ := json.Marshal(st.SupplyCenters)
	game.SupplyCenters = centers
}

// unitRows flattens the board's units, dislodged included, into storage
// rows.
func unitRows(gameID string, st *diplomacy.State) []model.Unit {
	rows := make([]model.Unit, 0, len(st.Units)+len(st.Dislodged))
	for _, u := range st.Units {
		rows = append(rows, model.Unit{
			GameID:   gameID,
			Kind:     u.Kind.String(),
			Power:    string(u.Power),
			Province: u.Province,
			Coast:    string(u.Coast),
		})
	}
	for _, d := range st.Dislodged {
		rows = append(rows, model.Unit{
			GameID:         gameID,
			Kind:           d.Unit.Kind.String(),
			Power:          string(d.Unit.Power),
			Province:       d.Unit.Province,
			Coast:          string(d.Unit.Coast),
			Dislodged:      true,
			AttackerOrigin: d.AttackerOrigin,
		})
	}
	return rows
}

// resolvedToModel flattens adjudication results into order rows with
// outcomes.
func resolvedToModel(phaseID string, results []diplomacy.ResolvedOrder) []model.Order {
	rows := make([]model.Order, 0, len(results))
	for _, r := range results {
		row := orderToModel(phaseID, r.Order)
		row.Outcome = r.Outcome.String()
		rows = append(rows, row)
	}
	return rows
}
