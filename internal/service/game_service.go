package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/config"
	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/pkg/diplomacy"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameNotForming = errors.New("game is not accepting players")
	ErrGameNotActive  = errors.New("game is not active")
	ErrGameCompleted  = errors.New("game is already completed")
	ErrGameFull       = errors.New("all powers are taken")
	ErrNoPlayers      = errors.New("no players have joined")
	ErrNotCreator     = errors.New("only the creator can do that")
	ErrAlreadyJoined  = errors.New("already joined this game")
	ErrNotInGame      = errors.New("you are not in this game")
	ErrPowerTaken     = errors.New("power already assigned to another player")
	ErrSlotAssigned   = errors.New("power slot is not open for replacement")
	ErrInvalidPower   = errors.New("invalid power")
	ErrUnknownMap     = errors.New("unknown map")
)

// GameService handles game lifecycle: create, join, start, replace,
// quit. Every mutating call verifies the caller's binding to the game.
type GameService struct {
	cfg       *config.Config
	gameRepo  repository.GameRepository
	phaseRepo repository.PhaseRepository
	cache     repository.GameCache
	notifier  Notifier
}

// NewGameService creates a GameService. A nil notifier disables events.
func NewGameService(cfg *config.Config, gameRepo repository.GameRepository, phaseRepo repository.PhaseRepository, cache repository.GameCache, notifier Notifier) *GameService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &GameService{cfg: cfg, gameRepo: gameRepo, phaseRepo: phaseRepo, cache: cache, notifier: notifier}
}

// CreateGame creates a new game in "forming" status with seven vacant
// power slots. The creator does not hold a power until they join.
func (s *GameService) CreateGame(ctx context.Context, name, mapName, creatorID string) (*model.Game, error) {
	if mapName == "" {
		mapName = "standard"
	}
	if mapName != "standard" {
		return nil, ErrUnknownMap
	}

	game, err := s.gameRepo.Create(ctx, name, mapName, creatorID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(newEvent(EventGameCreated, game.ID, 0, "", map[string]any{
		"name":       game.Name,
		"map_name":   game.MapName,
		"creator_id": game.CreatorID,
	}))
	return game, nil
}

// JoinGame claims a power slot in a forming game. An empty power means
// a random vacant slot. Returns the power assigned.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID, power string) (string, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return "", err
	}
	if game == nil {
		return "", ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusForming) {
		return "", ErrGameNotForming
	}
	for _, gp := range game.Powers {
		if gp.UserID == userID {
			return "", ErrAlreadyJoined
		}
	}

	if power == "" {
		power, err = s.claimRandomPower(ctx, game, userID)
		if err != nil {
			return "", err
		}
	} else {
		if _, ok := diplomacy.ParsePower(power); !ok {
			return "", ErrInvalidPower
		}
		if err := s.gameRepo.ClaimPower(ctx, gameID, power, userID); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return "", ErrPowerTaken
			}
			return "", err
		}
	}

	s.notifier.Notify(newEvent(EventGameJoined, gameID, 0, "", map[string]any{
		"power":   power,
		"user_id": userID,
	}))
	return power, nil
}

// claimRandomPower claims one of the vacant slots in shuffled order,
// retrying past slots lost to concurrent joiners.
func (s *GameService) claimRandomPower(ctx context.Context, game *model.Game, userID string) (string, error) {
	var vacant []string
	for _, gp := range game.Powers {
		if gp.UserID == "" {
			vacant = append(vacant, gp.Power)
		}
	}
	rand.Shuffle(len(vacant), func(i, j int) { vacant[i], vacant[j] = vacant[j], vacant[i] })

	for _, power := range vacant {
		err := s.gameRepo.ClaimPower(ctx, game.ID, power, userID)
		if err == nil {
			return power, nil
		}
		if !errors.Is(err, repository.ErrSlotTaken) {
			return "", err
		}
	}
	return "", ErrGameFull
}

// StartGame activates a forming game and creates its first phase,
// Spring 1901 Movement. Only the creator may start; at least one power
// must be claimed. Unclaimed powers play on in civil disorder.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusForming) {
		return nil, ErrGameNotForming
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	claimed := 0
	for _, gp := range game.Powers {
		if gp.UserID != "" {
			claimed++
		}
	}
	if claimed == 0 {
		return nil, ErrNoPlayers
	}

	if err := s.gameRepo.SetActive(ctx, gameID); err != nil {
		return nil, err
	}

	st := diplomacy.NewStartingState()
	stateJSON, err := marshalState(st)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.cfg.DefaultTurnDeadline)
	phase, err := s.phaseRepo.CreatePhase(ctx, gameID, 1, st.Year, string(st.Season), string(st.Phase), stateJSON, deadline)
	if err != nil {
		return nil, fmt.Errorf("create first phase: %w", err)
	}

	game.Status = string(diplomacy.StatusActive)
	game.Turn = 1
	applyStateToGame(game, st)
	if err := s.gameRepo.SaveState(ctx, game, unitRows(gameID, st)); err != nil {
		return nil, fmt.Errorf("save starting state: %w", err)
	}

	if err := s.cache.SetGameState(ctx, gameID, stateJSON); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to cache starting state")
	}
	if err := s.cache.SetTimer(ctx, gameID, deadline); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to set phase timer")
	}

	// Unclaimed powers hold every turn and never block resolution.
	for _, gp := range game.Powers {
		if gp.UserID == "" {
			if err := s.cache.MarkReady(ctx, gameID, gp.Power); err != nil {
				log.Warn().Err(err).Str("gameId", gameID).Str("power", gp.Power).Msg("Failed to auto-ready vacant power")
			}
		}
	}

	log.Info().Str("gameId", gameID).Int("players", claimed).
		Str("phaseId", phase.ID).Time("deadline", deadline).
		Msg("Game started")

	return s.gameRepo.FindByID(ctx, gameID)
}

// ReplacePlayer assigns a new user to a power slot. Permitted only when
// the slot is unassigned and inactive, which covers slots vacated by
// quit and slots never claimed before the game started.
func (s *GameService) ReplacePlayer(ctx context.Context, gameID, power, newUserID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status == string(diplomacy.StatusCompleted) {
		return ErrGameCompleted
	}
	if _, ok := diplomacy.ParsePower(power); !ok {
		return ErrInvalidPower
	}

	for _, gp := range game.Powers {
		if gp.UserID == newUserID {
			return ErrAlreadyJoined
		}
		if gp.Power == power && (gp.UserID != "" || gp.Active) {
			return ErrSlotAssigned
		}
	}

	if err := s.gameRepo.ClaimPower(ctx, gameID, power, newUserID); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return ErrSlotAssigned
		}
		return err
	}

	// The slot was auto-readied while vacant; the new player gets a say.
	if game.Status == string(diplomacy.StatusActive) {
		if err := s.cache.UnmarkReady(ctx, gameID, power); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Str("power", power).Msg("Failed to unmark ready after replacement")
		}
	}

	s.notifier.Notify(newEvent(EventPlayerReplaced, gameID, game.Turn, game.Phase, map[string]any{
		"power":   power,
		"user_id": newUserID,
	}))

	log.Info().Str("gameId", gameID).Str("power", power).Str("userId", newUserID).Msg("Player replaced")
	return nil
}

// QuitGame releases the caller's power slot. In an active game the
// abandoned power drops into civil disorder: its units hold and the
// phase never waits on it.
func (s *GameService) QuitGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status == string(diplomacy.StatusCompleted) {
		return ErrGameCompleted
	}

	power := ""
	for _, gp := range game.Powers {
		if gp.UserID == userID {
			power = gp.Power
			break
		}
	}
	if power == "" {
		return ErrNotInGame
	}

	if err := s.gameRepo.ReleasePower(ctx, gameID, userID); err != nil {
		return err
	}

	if game.Status == string(diplomacy.StatusActive) {
		if err := s.cache.MarkReady(ctx, gameID, power); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Str("power", power).Msg("Failed to auto-ready abandoned power")
		}
	}

	log.Info().Str("gameId", gameID).Str("power", power).Str("userId", userID).Msg("Player quit")
	return nil
}

// GetGame returns a game by ID with live ready and draw-vote counts.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status == string(diplomacy.StatusActive) {
		if n, err := s.cache.ReadyCount(ctx, gameID); err == nil {
			game.ReadyCount = int(n)
		}
		if n, err := s.cache.DrawVoteCount(ctx, gameID); err == nil {
			game.DrawVoteCount = int(n)
		}
	}
	return game, nil
}

// ListGames returns games by filter: "my" for the user's games,
// "completed" for finished games (optionally matching search), anything
// else lists forming games open to join.
func (s *GameService) ListGames(ctx context.Context, userID, filter, search string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.gameRepo.ListByUser(ctx, userID)
	case "completed":
		if search != "" {
			return s.gameRepo.SearchCompleted(ctx, search)
		}
		return s.gameRepo.ListCompleted(ctx)
	default:
		return s.gameRepo.ListForming(ctx)
	}
}

// DeleteGame removes a forming game. Only the creator can delete.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != string(diplomacy.StatusForming) {
		return ErrGameNotForming
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if err := s.gameRepo.Delete(ctx, gameID); err != nil {
		return err
	}
	return s.cache.DeleteGameData(ctx, gameID)
}
