package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/pkg/diplomacy"
)

var (
	ErrNoActivePhase = errors.New("no active phase")
	ErrPhaseClosed   = errors.New("phase already resolved")
)

// Receipt is the acceptance result for one submitted order. Order holds
// the canonical text of an accepted or rejected order, or the raw
// fragment when it could not be parsed at all.
type Receipt struct {
	Order    string `json:"order"`
	Accepted bool   `json:"accepted"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// StateView is the live game snapshot returned by state queries.
type StateView struct {
	GameID          string          `json:"game_id"`
	Status          string          `json:"status"`
	Turn            int             `json:"turn,omitempty"`
	PhaseID         string          `json:"phase_id,omitempty"`
	Year            int             `json:"year,omitempty"`
	Season          string          `json:"season,omitempty"`
	Phase           string          `json:"phase,omitempty"`
	State           json.RawMessage `json:"state,omitempty"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	OrdersSubmitted []string        `json:"orders_submitted,omitempty"`
	ReadyPowers     []string        `json:"ready_powers,omitempty"`
	Winner          string          `json:"winner,omitempty"`
}

// PhaseOrders groups one resolved phase with its adjudicated orders.
type PhaseOrders struct {
	Phase  model.Phase   `json:"phase"`
	Orders []model.Order `json:"orders"`
}

// OrderService handles order submission, queries, and ready flags.
type OrderService struct {
	gameRepo  repository.GameRepository
	phaseRepo repository.PhaseRepository
	cache     repository.GameCache
}

// NewOrderService creates an OrderService.
func NewOrderService(gameRepo repository.GameRepository, phaseRepo repository.PhaseRepository, cache repository.GameCache) *OrderService {
	return &OrderService{gameRepo: gameRepo, phaseRepo: phaseRepo, cache: cache}
}

// SubmitOrders parses a textual order submission for the caller's power
// and stores the accepted orders, replacing any earlier order for the
// same unit. Rejections are reported per order, never as a failure of
// the whole submission. phaseID, when non-empty, pins the submission to
// that phase; a stale ID is rejected rather than retargeted.
func (s *OrderService) SubmitOrders(ctx context.Context, gameID, userID, phaseID, text string) ([]Receipt, error) {
	game, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if game.Status != string(diplomacy.StatusActive) {
		return nil, ErrGameNotActive
	}

	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, ErrNoActivePhase
	}
	if phaseID != "" && phaseID != phase.ID {
		return nil, ErrPhaseClosed
	}

	var st diplomacy.State
	if err := json.Unmarshal(phase.StateBefore, &st); err != nil {
		return nil, fmt.Errorf("unmarshal phase state: %w", err)
	}

	m := diplomacy.Standard()
	kind := diplomacy.PhaseKind(phase.Kind)
	orders, parseErrs := m.ParseOrders(text, power, kind)

	receipts := make([]Receipt, 0, len(orders)+len(parseErrs))
	accepted := 0
	for i := range orders {
		o := orders[i]
		if err := m.ValidateOrder(&st, kind, &o); err != nil {
			receipts = append(receipts, rejectionReceipt(o, err))
			continue
		}
		if err := s.phaseRepo.UpsertOrder(ctx, orderToModel(phase.ID, o)); err != nil {
			return nil, fmt.Errorf("store order: %w", err)
		}
		receipts = append(receipts, Receipt{Order: o.Text(), Accepted: true})
		accepted++
	}
	for _, pe := range parseErrs {
		receipts = append(receipts, Receipt{
			Order:  pe.Fragment,
			Kind:   diplomacy.RejectSyntax.String(),
			Reason: pe.Reason,
		})
	}

	// A revised submission withdraws any earlier ready mark.
	if accepted > 0 {
		if err := s.cache.UnmarkReady(ctx, gameID, string(power)); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Str("power", string(power)).Msg("Failed to unmark ready on resubmission")
		}
	}

	log.Debug().Str("gameId", gameID).Str("power", string(power)).
		Int("accepted", accepted).Int("rejected", len(receipts)-accepted).
		Msg("Orders submitted")

	return receipts, nil
}

func rejectionReceipt(o diplomacy.Order, err error) Receipt {
	var oe *diplomacy.OrderError
	if errors.As(err, &oe) {
		return Receipt{Order: o.Text(), Kind: oe.Kind.String(), Reason: oe.Reason}
	}
	return Receipt{Order: o.Text(), Kind: diplomacy.RejectSyntax.String(), Reason: err.Error()}
}

// orderToModel flattens an engine order into its storage row. The coast
// survives inside Text, which parses back to the identical order.
func orderToModel(phaseID string, o diplomacy.Order) model.Order {
	mo := model.Order{
		PhaseID:  phaseID,
		Power:    string(o.Power),
		UnitType: o.Kind.String(),
		Location: o.Province,
		Action:   o.Action.String(),
		Target:   o.Target,
		Text:     o.Text(),
	}
	switch o.Action {
	case diplomacy.SupportHold, diplomacy.SupportMove, diplomacy.ConvoyOrder:
		mo.AuxUnitType = o.AuxKind.String()
		mo.AuxLoc = o.AuxProvince
	}
	return mo
}

// ClearOrders removes the caller's orders for the current phase and
// withdraws their ready mark.
func (s *OrderService) ClearOrders(ctx context.Context, gameID, userID string) error {
	game, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return err
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
	if err := s.phaseRepo.ClearOrders(ctx, phase.ID, string(power)); err != nil {
		return err
	}
	return s.cache.UnmarkReady(ctx, gameID, string(power))
}

// GetOrders returns the caller's own orders for the current phase.
// Other powers' submissions stay hidden until the phase resolves.
func (s *OrderService) GetOrders(ctx context.Context, gameID, userID string) ([]model.Order, error) {
	_, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, ErrNoActivePhase
	}
	return s.phaseRepo.OrdersByPower(ctx, phase.ID, string(power))
}

// GetOrderHistory returns resolved phases with their adjudicated orders,
// oldest first, optionally bounded by turn number (0 means unbounded).
func (s *OrderService) GetOrderHistory(ctx context.Context, gameID string, fromTurn, toTurn int) ([]PhaseOrders, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	phases, err := s.phaseRepo.ListPhases(ctx, gameID, fromTurn, toTurn)
	if err != nil {
		return nil, err
	}

	var history []PhaseOrders
	for _, p := range phases {
		if p.ResolvedAt == nil {
			continue
		}
		orders, err := s.phaseRepo.OrdersByPhase(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		history = append(history, PhaseOrders{Phase: p, Orders: orders})
	}
	return history, nil
}

// GetPhaseHistory returns the game's phase rows, oldest first, with
// their before and after state snapshots.
func (s *OrderService) GetPhaseHistory(ctx context.Context, gameID string, fromTurn, toTurn int) ([]model.Phase, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return s.phaseRepo.ListPhases(ctx, gameID, fromTurn, toTurn)
}

// LegalOrders enumerates every order text the current phase accepts for
// the caller's unit (or build site) at a province.
func (s *OrderService) LegalOrders(ctx context.Context, gameID, userID, province string) ([]string, error) {
	game, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if game.Status != string(diplomacy.StatusActive) {
		return nil, ErrGameNotActive
	}
	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, ErrNoActivePhase
	}
	var st diplomacy.State
	if err := json.Unmarshal(phase.StateBefore, &st); err != nil {
		return nil, fmt.Errorf("unmarshal phase state: %w", err)
	}
	m := diplomacy.Standard()
	return m.LegalOrders(&st, diplomacy.PhaseKind(phase.Kind), power, province), nil
}

// GetState returns the live snapshot of a game: board, deadline, which
// powers have submitted, which are ready. The board is read from the
// cache when warm, the current phase row otherwise, and is reconstructed
// from the games and units rows when neither applies.
func (s *OrderService) GetState(ctx context.Context, gameID string) (*StateView, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	view := &StateView{
		GameID: gameID,
		Status: game.Status,
		Turn:   game.Turn,
		Year:   game.Year,
		Season: game.Season,
		Phase:  game.Phase,
		Winner: game.Winner,
	}
	if game.Status == string(diplomacy.StatusForming) {
		return view, nil
	}

	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return nil, err
	}

	stateJSON, err := s.cache.GetGameState(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("State cache read failed")
		stateJSON = nil
	}
	if stateJSON == nil && phase != nil {
		stateJSON = phase.StateBefore
	}
	if stateJSON == nil {
		stateJSON, err = s.reconstructState(ctx, game)
		if err != nil {
			return nil, fmt.Errorf("reconstruct state: %w", err)
		}
	}
	view.State = stateJSON

	if phase != nil {
		view.PhaseID = phase.ID
		view.Turn = phase.Turn
		view.Year = phase.Year
		view.Season = phase.Season
		view.Phase = phase.Kind
		view.Deadline = &phase.Deadline

		orders, err := s.phaseRepo.OrdersByPhase(ctx, phase.ID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, o := range orders {
			if !seen[o.Power] {
				seen[o.Power] = true
				view.OrdersSubmitted = append(view.OrdersSubmitted, o.Power)
			}
		}
		sort.Strings(view.OrdersSubmitted)

		if ready, err := s.cache.ReadyPowers(ctx, gameID); err == nil {
			sort.Strings(ready)
			view.ReadyPowers = ready
		}
	}
	return view, nil
}

// reconstructState rebuilds the board snapshot from the games row and
// the denormalized unit rows. This is the recovery path the store
// contract guarantees: no transient data is needed.
func (s *OrderService) reconstructState(ctx context.Context, game *model.Game) (json.RawMessage, error) {
	units, err := s.gameRepo.UnitsByGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	st := diplomacy.State{
		Year:   game.Year,
		Season: diplomacy.Season(game.Season),
		Phase:  diplomacy.PhaseKind(game.Phase),
	}
	if len(game.SupplyCenters) > 0 {
		if err := json.Unmarshal(game.SupplyCenters, &st.SupplyCenters); err != nil {
			return nil, fmt.Errorf("unmarshal supply centers: %w", err)
		}
	}
	for _, u := range units {
		eu := diplomacy.Unit{
			Kind:     diplomacy.Army,
			Power:    diplomacy.Power(u.Power),
			Province: u.Province,
			Coast:    diplomacy.Coast(u.Coast),
		}
		if u.Kind == "fleet" {
			eu.Kind = diplomacy.Fleet
		}
		if u.Dislodged {
			st.Dislodged = append(st.Dislodged, diplomacy.Dislodgement{Unit: eu, AttackerOrigin: u.AttackerOrigin})
		} else {
			st.Units = append(st.Units, eu)
		}
	}
	return marshalState(&st)
}

// MarkReady flags the caller's power as done for the current phase.
// Returns the ready count and the total power count; the caller decides
// whether to attempt early resolution.
func (s *OrderService) MarkReady(ctx context.Context, gameID, userID string) (int64, int, error) {
	game, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return 0, 0, err
	}
	if game.Status != string(diplomacy.StatusActive) {
		return 0, 0, ErrGameNotActive
	}
	if err := s.cache.MarkReady(ctx, gameID, string(power)); err != nil {
		return 0, 0, fmt.Errorf("mark ready: %w", err)
	}
	count, err := s.cache.ReadyCount(ctx, gameID)
	if err != nil {
		return 0, 0, fmt.Errorf("ready count: %w", err)
	}
	return count, len(diplomacy.AllPowers()), nil
}

// UnmarkReady withdraws the caller's ready flag.
func (s *OrderService) UnmarkReady(ctx context.Context, gameID, userID string) error {
	game, power, err := s.playerPower(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if game.Status != string(diplomacy.StatusActive) {
		return ErrGameNotActive
	}
	return s.cache.UnmarkReady(ctx, gameID, string(power))
}

// playerPower loads a game and resolves the caller's power binding.
func (s *OrderService) playerPower(ctx context.Context, gameID, userID string) (*model.Game, diplomacy.Power, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, diplomacy.Neutral, err
	}
	if game == nil {
		return nil, diplomacy.Neutral, ErrGameNotFound
	}
	for _, gp := range game.Powers {
		if gp.UserID != "" && gp.UserID == userID {
			return game, diplomacy.Power(gp.Power), nil
		}
	}
	return nil, diplomacy.Neutral, ErrNotInGame
}
