package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/freeeve/diplomat/pkg/diplomacy"
)

// gameWithState builds an active game whose current phase carries the
// given board and a deadline already in the past, so ProcessPhase
// resolves it immediately. seats maps power name to user ID.
func gameWithState(t *testing.T, st *diplomacy.State, seats map[string]string) (*mockGameRepo, *mockPhaseRepo, *mockCache, string) {
	t.Helper()
	ctx := context.Background()
	gameRepo := newMockGameRepo()
	phaseRepo := newMockPhaseRepo()
	cache := newMockCache()

	game, err := gameRepo.Create(ctx, "Test", "standard", "user-1")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	for power, user := range seats {
		if err := gameRepo.ClaimPower(ctx, game.ID, power, user); err != nil {
			t.Fatalf("claim %s: %v", power, err)
		}
	}
	gameRepo.SetActive(ctx, game.ID)

	stateJSON, err := marshalState(st)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	if _, err := phaseRepo.CreatePhase(ctx, game.ID, 1, st.Year, string(st.Season), string(st.Phase), stateJSON, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("create phase: %v", err)
	}

	g, _ := gameRepo.FindByID(ctx, game.ID)
	g.Turn = 1
	applyStateToGame(g, st)
	if err := gameRepo.SaveState(ctx, g, unitRows(game.ID, st)); err != nil {
		t.Fatalf("save state: %v", err)
	}
	cache.SetGameState(ctx, game.ID, stateJSON)
	return gameRepo, phaseRepo, cache, game.ID
}

// expireCurrent backdates the current phase's deadline.
func expireCurrent(t *testing.T, phaseRepo *mockPhaseRepo, gameID string) {
	t.Helper()
	phase, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if phase == nil {
		t.Fatal("no current phase to expire")
	}
	phase.Deadline = time.Now().Add(-time.Minute)
}

func stateAfterOf(t *testing.T, phaseRepo *mockPhaseRepo, phaseID string) *diplomacy.State {
	t.Helper()
	for _, p := range phaseRepo.phases {
		if p.ID == phaseID {
			if p.ResolvedAt == nil {
				t.Fatalf("phase %s not resolved", phaseID)
			}
			var st diplomacy.State
			if err := json.Unmarshal(p.StateAfter, &st); err != nil {
				t.Fatalf("unmarshal state_after: %v", err)
			}
			return &st
		}
	}
	t.Fatalf("phase %s not found", phaseID)
	return nil
}

func TestProcessPhaseAllHold(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	notifier := &recordingNotifier{}
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, notifier)

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	expireCurrent(t, phaseRepo, gameID)

	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	// Nobody ordered, so all 22 units held.
	results, _ := phaseRepo.OrdersByPhase(context.Background(), first.ID)
	if len(results) != 22 {
		t.Fatalf("expected 22 resolved orders, got %d", len(results))
	}
	for _, r := range results {
		if r.Action != "hold" || r.Outcome != "succeeded" {
			t.Errorf("expected hold/succeeded, got %s/%s for %s", r.Action, r.Outcome, r.Location)
		}
	}

	after := stateAfterOf(t, phaseRepo, first.ID)
	if len(after.Units) != 22 {
		t.Errorf("expected 22 units after holds, got %d", len(after.Units))
	}

	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next == nil || next.ID == first.ID {
		t.Fatal("expected a new current phase")
	}
	if next.Turn != 2 || next.Year != 1901 || next.Season != "fall" || next.Kind != "movement" {
		t.Errorf("expected turn 2 Fall 1901 Movement, got turn %d %d %s %s", next.Turn, next.Year, next.Season, next.Kind)
	}

	game, _ := gameRepo.FindByID(context.Background(), gameID)
	if game.Turn != 2 {
		t.Errorf("expected game turn 2, got %d", game.Turn)
	}

	// Cache carries the new board and the vacant powers are re-readied.
	var cached diplomacy.State
	if err := json.Unmarshal(cache.states[gameID], &cached); err != nil {
		t.Fatalf("unmarshal cached state: %v", err)
	}
	if cached.Season != diplomacy.Fall {
		t.Errorf("expected cached state in fall, got %s", cached.Season)
	}
	if n, _ := cache.ReadyCount(context.Background(), gameID); n != 5 {
		t.Errorf("expected 5 auto-readied powers after resolution, got %d", n)
	}

	e, ok := notifier.lastOfKind(EventTurnProcessed)
	if !ok {
		t.Fatal("expected a TURN_PROCESSED event")
	}
	if e.Turn != 1 {
		t.Errorf("expected event for turn 1, got %d", e.Turn)
	}
	if e.Payload["next_kind"] != "movement" {
		t.Errorf("expected next_kind movement, got %v", e.Payload["next_kind"])
	}
}

func TestProcessPhaseAppliesMoves(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if _, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "", "A par - bur"); err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	expireCurrent(t, phaseRepo, gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	after := stateAfterOf(t, phaseRepo, first.ID)
	bur := after.UnitAt("bur")
	if bur == nil || bur.Power != diplomacy.France {
		t.Error("expected the French army in Burgundy after the move")
	}
	if after.UnitAt("par") != nil {
		t.Error("expected Paris vacated")
	}

	results, _ := phaseRepo.OrdersByPhase(context.Background(), first.ID)
	for _, r := range results {
		if r.Location == "par" {
			if r.Action != "move" || r.Outcome != "succeeded" {
				t.Errorf("expected par move succeeded, got %s/%s", r.Action, r.Outcome)
			}
		}
	}
}

func TestProcessPhaseStandoff(t *testing.T) {
	st := diplomacy.NewStartingState()
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"russia": "user-1",
		"turkey": "user-2",
	})
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if _, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "", "F sev - bla"); err != nil {
		t.Fatalf("submit russia: %v", err)
	}
	if _, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-2", "", "F ank - bla"); err != nil {
		t.Fatalf("submit turkey: %v", err)
	}

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	after := stateAfterOf(t, phaseRepo, first.ID)
	if after.UnitAt("bla") != nil {
		t.Error("expected the Black Sea left vacant by the standoff")
	}
	if !after.IsStandoff("bla") {
		t.Errorf("expected bla recorded as a standoff, got %v", after.Standoffs)
	}

	results, _ := phaseRepo.OrdersByPhase(context.Background(), first.ID)
	for _, r := range results {
		if r.Location == "sev" || r.Location == "ank" {
			if r.Outcome != "failed" {
				t.Errorf("expected %s move failed, got %s", r.Location, r.Outcome)
			}
		}
	}
}

func TestProcessPhaseBeforeDeadline(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	phase, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if phase == nil || phase.ResolvedAt != nil {
		t.Error("expected the phase untouched before its deadline")
	}
	if len(phaseRepo.phases) != 1 {
		t.Errorf("expected no new phase, got %d rows", len(phaseRepo.phases))
	}
}

func TestProcessPhaseTwice(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	expireCurrent(t, phaseRepo, gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("first ProcessPhase: %v", err)
	}
	// The new phase's deadline is in the future; a second trigger for
	// the same game is a no-op.
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("second ProcessPhase: %v", err)
	}
	if len(phaseRepo.phases) != 2 {
		t.Errorf("expected 2 phase rows, got %d", len(phaseRepo.phases))
	}
}

func TestProcessIfAllReadyResolvesEarly(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	cache.MarkReady(context.Background(), gameID, "france")
	cache.MarkReady(context.Background(), gameID, "england")

	if err := svc.ProcessIfAllReady(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessIfAllReady: %v", err)
	}
	if len(phaseRepo.phases) != 2 {
		t.Errorf("expected early resolution to open phase 2, got %d rows", len(phaseRepo.phases))
	}
}

func TestProcessIfAllReadyWaits(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	// england has not marked ready.
	cache.MarkReady(context.Background(), gameID, "france")

	if err := svc.ProcessIfAllReady(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessIfAllReady: %v", err)
	}
	phase, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if phase.ResolvedAt != nil {
		t.Error("expected the phase to keep waiting for england")
	}
}

func TestProcessPhaseDislodgementOpensRetreat(t *testing.T) {
	st := &diplomacy.State{
		Year: 1901, Season: diplomacy.Spring, Phase: diplomacy.PhaseMovement,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "bur"},
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "ruh"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "mun"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: map[string]diplomacy.Power{
			"par": diplomacy.France,
			"mun": diplomacy.Germany,
			"ber": diplomacy.Germany,
		},
	}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	receipts, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "",
		"A bur - mun\nA ruh S A bur - mun")
	if err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}
	for _, r := range receipts {
		if !r.Accepted {
			t.Fatalf("expected %q accepted: %s", r.Order, r.Reason)
		}
	}

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	after := stateAfterOf(t, phaseRepo, first.ID)
	mun := after.UnitAt("mun")
	if mun == nil || mun.Power != diplomacy.France {
		t.Error("expected France in Munich after the supported attack")
	}
	if len(after.Dislodged) != 1 {
		t.Fatalf("expected 1 dislodgement, got %d", len(after.Dislodged))
	}
	d := after.Dislodged[0]
	if d.Unit.Power != diplomacy.Germany || d.Unit.Province != "mun" || d.AttackerOrigin != "bur" {
		t.Errorf("unexpected dislodgement %+v", d)
	}

	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next.Kind != "retreat" || next.Season != "spring" || next.Turn != 2 {
		t.Errorf("expected a Spring retreat phase at turn 2, got %s %s turn %d", next.Season, next.Kind, next.Turn)
	}

	// The dislodged unit survives in the denormalized rows.
	units, _ := gameRepo.UnitsByGame(context.Background(), gameID)
	foundDislodged := false
	for _, u := range units {
		if u.Dislodged && u.Province == "mun" && u.AttackerOrigin == "bur" {
			foundDislodged = true
		}
	}
	if !foundDislodged {
		t.Error("expected a dislodged unit row for mun")
	}
}

func TestProcessPhaseRetreatAutoDisbands(t *testing.T) {
	st := &diplomacy.State{
		Year: 1901, Season: diplomacy.Spring, Phase: diplomacy.PhaseMovement,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "bur"},
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "ruh"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "mun"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: map[string]diplomacy.Power{
			"par": diplomacy.France,
			"mun": diplomacy.Germany,
			"ber": diplomacy.Germany,
		},
	}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "", "A bur - mun\nA ruh S A bur - mun")
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("movement ProcessPhase: %v", err)
	}

	// Germany submits no retreat; the dislodged army disbands.
	retreat, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if retreat.Kind != "retreat" {
		t.Fatalf("expected retreat phase, got %s", retreat.Kind)
	}
	expireCurrent(t, phaseRepo, gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("retreat ProcessPhase: %v", err)
	}

	after := stateAfterOf(t, phaseRepo, retreat.ID)
	if len(after.Dislodged) != 0 {
		t.Errorf("expected no dislodged units after the retreat phase, got %d", len(after.Dislodged))
	}
	if after.UnitCount(diplomacy.Germany) != 1 {
		t.Errorf("expected Germany down to 1 unit, got %d", after.UnitCount(diplomacy.Germany))
	}

	results, _ := phaseRepo.OrdersByPhase(context.Background(), retreat.ID)
	if len(results) != 1 {
		t.Fatalf("expected 1 retreat result, got %d", len(results))
	}
	if results[0].Action != "disband" || results[0].Outcome != "succeeded" {
		t.Errorf("expected disband/succeeded, got %s/%s", results[0].Action, results[0].Outcome)
	}

	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next.Season != "fall" || next.Kind != "movement" {
		t.Errorf("expected Fall Movement after the retreat, got %s %s", next.Season, next.Kind)
	}
}

func TestProcessPhaseFallCaptureOpensAdjustment(t *testing.T) {
	st := &diplomacy.State{
		Year: 1901, Season: diplomacy.Fall, Phase: diplomacy.PhaseMovement,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "gas"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: map[string]diplomacy.Power{
			"par": diplomacy.France,
			"spa": diplomacy.Neutral,
			"ber": diplomacy.Germany,
		},
	}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if _, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "", "A gas - spa"); err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	// The conquest shows in the resolved snapshot, not just the next one.
	after := stateAfterOf(t, phaseRepo, first.ID)
	if after.SupplyCenters["spa"] != diplomacy.France {
		t.Errorf("expected Spain French in the closing snapshot, got %q", after.SupplyCenters["spa"])
	}

	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next.Kind != "adjustment" || next.Year != 1901 {
		t.Errorf("expected a 1901 adjustment phase, got %s %d", next.Kind, next.Year)
	}
}

func TestProcessPhaseBuild(t *testing.T) {
	st := &diplomacy.State{
		Year: 1901, Season: diplomacy.Fall, Phase: diplomacy.PhaseAdjustment,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "spa"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: map[string]diplomacy.Power{
			"par": diplomacy.France,
			"spa": diplomacy.France,
			"ber": diplomacy.Germany,
		},
	}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	orderSvc := NewOrderService(gameRepo, phaseRepo, cache)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	receipts, err := orderSvc.SubmitOrders(context.Background(), gameID, "user-1", "", "BUILD A par")
	if err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}
	if len(receipts) != 1 || !receipts[0].Accepted {
		t.Fatalf("expected the build accepted, got %+v", receipts)
	}

	first, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	after := stateAfterOf(t, phaseRepo, first.ID)
	if after.UnitCount(diplomacy.France) != 2 {
		t.Errorf("expected France up to 2 units, got %d", after.UnitCount(diplomacy.France))
	}
	if after.UnitAt("par") == nil {
		t.Error("expected the new army in Paris")
	}

	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next.Year != 1902 || next.Season != "spring" || next.Kind != "movement" {
		t.Errorf("expected Spring 1902 Movement, got %d %s %s", next.Year, next.Season, next.Kind)
	}
}

func TestProcessPhaseSkipsNoopAdjustment(t *testing.T) {
	st := &diplomacy.State{
		Year: 1901, Season: diplomacy.Fall, Phase: diplomacy.PhaseMovement,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "par"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: map[string]diplomacy.Power{
			"par": diplomacy.France,
			"ber": diplomacy.Germany,
		},
	}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	// Centers match units everywhere, so no adjustment phase opens.
	next, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if next.Year != 1902 || next.Season != "spring" || next.Kind != "movement" {
		t.Errorf("expected Spring 1902 Movement directly, got %d %s %s", next.Year, next.Season, next.Kind)
	}
	for _, p := range phaseRepo.phases {
		if p.Kind == "adjustment" {
			t.Error("expected no adjustment phase row")
		}
	}
}

func TestProcessPhaseVictoryCompletesGame(t *testing.T) {
	centers := map[string]diplomacy.Power{"ber": diplomacy.Germany}
	for _, sc := range []string{
		"par", "mar", "bre", "spa", "por", "bel", "hol", "lon", "lvp",
		"edi", "mun", "kie", "ven", "rom", "nap", "tun", "vie", "tri",
	} {
		centers[sc] = diplomacy.France
	}
	st := &diplomacy.State{
		Year: 1905, Season: diplomacy.Spring, Phase: diplomacy.PhaseMovement,
		Units: []diplomacy.Unit{
			{Kind: diplomacy.Army, Power: diplomacy.France, Province: "par"},
			{Kind: diplomacy.Army, Power: diplomacy.Germany, Province: "ber"},
		},
		SupplyCenters: centers,
	}
	notifier := &recordingNotifier{}
	gameRepo, phaseRepo, cache, gameID := gameWithState(t, st, map[string]string{
		"france":  "user-1",
		"germany": "user-2",
	})
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, notifier)

	if err := svc.ProcessPhase(context.Background(), gameID); err != nil {
		t.Fatalf("ProcessPhase: %v", err)
	}

	game, _ := gameRepo.FindByID(context.Background(), gameID)
	if game.Status != "completed" {
		t.Errorf("expected status completed, got %s", game.Status)
	}
	if game.Winner != "france" {
		t.Errorf("expected winner france, got %q", game.Winner)
	}
	if len(phaseRepo.phases) != 1 {
		t.Errorf("expected no phase after the victory, got %d rows", len(phaseRepo.phases))
	}
	if _, ok := cache.states[gameID]; ok {
		t.Error("expected the completed game's cache cleared")
	}

	e, ok := notifier.lastOfKind(EventGameCompleted)
	if !ok {
		t.Fatal("expected a GAME_COMPLETED event")
	}
	if e.Payload["winner"] != "france" || e.Payload["reason"] != "victory" {
		t.Errorf("unexpected completion payload %v", e.Payload)
	}
}

func TestVoteDrawUnanimous(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	notifier := &recordingNotifier{}
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, notifier)

	count, err := svc.VoteDraw(context.Background(), gameID, "user-1")
	if err != nil {
		t.Fatalf("first VoteDraw: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 vote, got %d", count)
	}
	game, _ := gameRepo.FindByID(context.Background(), gameID)
	if game.Status != "active" {
		t.Fatalf("one vote must not complete the game, status %s", game.Status)
	}

	count, err = svc.VoteDraw(context.Background(), gameID, "user-2")
	if err != nil {
		t.Fatalf("second VoteDraw: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 votes, got %d", count)
	}

	game, _ = gameRepo.FindByID(context.Background(), gameID)
	if game.Status != "completed" {
		t.Errorf("expected a unanimous draw to complete the game, status %s", game.Status)
	}
	if game.Winner != "" {
		t.Errorf("expected no winner for a draw, got %q", game.Winner)
	}
	e, ok := notifier.lastOfKind(EventGameCompleted)
	if !ok {
		t.Fatal("expected a GAME_COMPLETED event")
	}
	if e.Payload["reason"] != "draw" {
		t.Errorf("expected reason draw, got %v", e.Payload["reason"])
	}
}

func TestRetractDrawVote(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	svc.VoteDraw(context.Background(), gameID, "user-1")
	if err := svc.RetractDrawVote(context.Background(), gameID, "user-1"); err != nil {
		t.Fatalf("RetractDrawVote: %v", err)
	}

	count, err := svc.VoteDraw(context.Background(), gameID, "user-2")
	if err != nil {
		t.Fatalf("VoteDraw: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 vote after retraction, got %d", count)
	}
	game, _ := gameRepo.FindByID(context.Background(), gameID)
	if game.Status != "active" {
		t.Errorf("expected the game still active, got %s", game.Status)
	}
}

func TestVoteDrawNotInGame(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	if _, err := svc.VoteDraw(context.Background(), gameID, "user-9"); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
}

func TestSetDeadline(t *testing.T) {
	gameRepo, phaseRepo, cache, gameID := startedGame(t)
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cache, nil)

	deadline := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	if err := svc.SetDeadline(context.Background(), gameID, deadline); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}

	phase, _ := phaseRepo.CurrentPhase(context.Background(), gameID)
	if !phase.Deadline.Equal(deadline) {
		t.Errorf("expected deadline %v, got %v", deadline, phase.Deadline)
	}
	if got := cache.timers[gameID]; !got.Equal(deadline) {
		t.Errorf("expected timer retimed to %v, got %v", deadline, got)
	}
}

func TestSetDeadlineNotActive(t *testing.T) {
	gameRepo := newMockGameRepo()
	svc := NewPhaseService(testConfig(), gameRepo, newMockPhaseRepo(), newMockCache(), nil)

	game, _ := gameRepo.Create(context.Background(), "Test", "standard", "user-1")
	err := svc.SetDeadline(context.Background(), game.ID, time.Now().Add(time.Hour))
	if err != ErrGameNotActive {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}

	err = svc.SetDeadline(context.Background(), "nonexistent", time.Now().Add(time.Hour))
	if err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
}

func TestProcessPhaseNonActiveGame(t *testing.T) {
	gameRepo := newMockGameRepo()
	svc := NewPhaseService(testConfig(), gameRepo, newMockPhaseRepo(), newMockCache(), nil)

	game, _ := gameRepo.Create(context.Background(), "Test", "standard", "user-1")
	if err := svc.ProcessPhase(context.Background(), game.ID); err != nil {
		t.Errorf("expected a forming game skipped quietly, got %v", err)
	}

	if err := svc.ProcessPhase(context.Background(), "nonexistent"); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRecoverActiveGames(t *testing.T) {
	gameRepo, phaseRepo, _, gameID := startedGame(t)

	// Fresh cache simulates a restart with Redis wiped.
	cold := newMockCache()
	svc := NewPhaseService(testConfig(), gameRepo, phaseRepo, cold, nil)

	if err := svc.RecoverActiveGames(context.Background()); err != nil {
		t.Fatalf("RecoverActiveGames: %v", err)
	}

	var st diplomacy.State
	if err := json.Unmarshal(cold.states[gameID], &st); err != nil {
		t.Fatalf("unmarshal recovered state: %v", err)
	}
	if len(st.Units) != 22 {
		t.Errorf("expected 22 units recovered, got %d", len(st.Units))
	}
	if _, ok := cold.timers[gameID]; !ok {
		t.Error("expected the timer restored for a future deadline")
	}
	if n, _ := cold.ReadyCount(context.Background(), gameID); n != 5 {
		t.Errorf("expected 5 vacant powers re-readied, got %d", n)
	}
}
