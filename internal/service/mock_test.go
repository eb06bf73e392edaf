package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/freeeve/diplomat/internal/config"
	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/repository"
	"github.com/freeeve/diplomat/pkg/diplomacy"
)

func testConfig() *config.Config {
	return &config.Config{
		TickInterval:              time.Second,
		ReminderThreshold:         10 * time.Minute,
		DefaultTurnDeadline:       24 * time.Hour,
		DefaultRetreatDeadline:    12 * time.Hour,
		DefaultAdjustmentDeadline: 12 * time.Hour,
		ProcessBudget:             5 * time.Second,
	}
}

type mockGameRepo struct {
	games  map[string]*model.Game
	powers map[string][]model.GamePower
	units  map[string][]model.Unit
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:  make(map[string]*model.Game),
		powers: make(map[string][]model.GamePower),
		units:  make(map[string][]model.Unit),
	}
}

func (m *mockGameRepo) Create(_ context.Context, name, mapName, creatorID string) (*model.Game, error) {
	g := &model.Game{
		ID:        fmt.Sprintf("game-%d", len(m.games)+1),
		Name:      name,
		MapName:   mapName,
		CreatorID: creatorID,
		Status:    "forming",
		CreatedAt: time.Now(),
	}
	m.games[g.ID] = g
	for _, p := range diplomacy.AllPowers() {
		m.powers[g.ID] = append(m.powers[g.ID], model.GamePower{GameID: g.ID, Power: string(p)})
	}
	return m.FindByID(context.Background(), g.ID)
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Powers = append([]model.GamePower(nil), m.powers[id]...)
	return &cp, nil
}

func (m *mockGameRepo) ListForming(_ context.Context) ([]model.Game, error) {
	return m.listByStatus("forming"), nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	var result []model.Game
	for gameID, powers := range m.powers {
		for _, gp := range powers {
			if gp.UserID == userID {
				g, _ := m.FindByID(context.Background(), gameID)
				result = append(result, *g)
				break
			}
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListCompleted(_ context.Context) ([]model.Game, error) {
	return m.listByStatus("completed"), nil
}

func (m *mockGameRepo) SearchCompleted(_ context.Context, search string) ([]model.Game, error) {
	lower := strings.ToLower(search)
	var result []model.Game
	for _, g := range m.listByStatus("completed") {
		if strings.Contains(strings.ToLower(g.Name), lower) {
			result = append(result, g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	return m.listByStatus("active"), nil
}

func (m *mockGameRepo) listByStatus(status string) []model.Game {
	var ids []string
	for id, g := range m.games {
		if g.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var result []model.Game
	for _, id := range ids {
		g, _ := m.FindByID(context.Background(), id)
		result = append(result, *g)
	}
	return result
}

func (m *mockGameRepo) ClaimPower(_ context.Context, gameID, power, userID string) error {
	powers := m.powers[gameID]
	for i, gp := range powers {
		if gp.Power == power {
			if gp.UserID != "" {
				return repository.ErrSlotTaken
			}
			now := time.Now()
			powers[i].UserID = userID
			powers[i].Active = true
			powers[i].JoinedAt = &now
			return nil
		}
	}
	return fmt.Errorf("no such power %q", power)
}

func (m *mockGameRepo) ReleasePower(_ context.Context, gameID, userID string) error {
	powers := m.powers[gameID]
	for i, gp := range powers {
		if gp.UserID == userID {
			powers[i].UserID = ""
			powers[i].Active = false
			powers[i].JoinedAt = nil
			return nil
		}
	}
	return fmt.Errorf("user not in game")
}

func (m *mockGameRepo) SetActive(_ context.Context, gameID string) error {
	if g, ok := m.games[gameID]; ok && g.Status == "forming" {
		g.Status = "active"
		now := time.Now()
		g.StartedAt = &now
	}
	return nil
}

func (m *mockGameRepo) SaveState(_ context.Context, game *model.Game, units []model.Unit) error {
	g, ok := m.games[game.ID]
	if !ok {
		return fmt.Errorf("game not found")
	}
	g.Status = game.Status
	g.Turn = game.Turn
	g.Year = game.Year
	g.Season = game.Season
	g.Phase = game.Phase
	g.SupplyCenters = game.SupplyCenters
	m.units[game.ID] = append([]model.Unit(nil), units...)
	return nil
}

func (m *mockGameRepo) UnitsByGame(_ context.Context, gameID string) ([]model.Unit, error) {
	return m.units[gameID], nil
}

func (m *mockGameRepo) SetCompleted(_ context.Context, gameID, winner string) error {
	if g, ok := m.games[gameID]; ok {
		g.Status = "completed"
		g.Winner = winner
		now := time.Now()
		g.FinishedAt = &now
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	delete(m.games, gameID)
	delete(m.powers, gameID)
	delete(m.units, gameID)
	return nil
}

type mockPhaseRepo struct {
	seq    int
	phases []*model.Phase
	orders map[string][]model.Order
}

func newMockPhaseRepo() *mockPhaseRepo {
	return &mockPhaseRepo{orders: make(map[string][]model.Order)}
}

func (m *mockPhaseRepo) CreatePhase(_ context.Context, gameID string, turn, year int, season, kind string, stateBefore json.RawMessage, deadline time.Time) (*model.Phase, error) {
	m.seq++
	p := &model.Phase{
		ID:          fmt.Sprintf("phase-%d", m.seq),
		GameID:      gameID,
		Turn:        turn,
		Year:        year,
		Season:      season,
		Kind:        kind,
		StateBefore: stateBefore,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	m.phases = append(m.phases, p)
	return p, nil
}

func (m *mockPhaseRepo) CurrentPhase(_ context.Context, gameID string) (*model.Phase, error) {
	var current *model.Phase
	for _, p := range m.phases {
		if p.GameID == gameID && p.ResolvedAt == nil {
			current = p
		}
	}
	return current, nil
}

func (m *mockPhaseRepo) ListPhases(_ context.Context, gameID string, fromTurn, toTurn int) ([]model.Phase, error) {
	var result []model.Phase
	for _, p := range m.phases {
		if p.GameID != gameID {
			continue
		}
		if fromTurn > 0 && p.Turn < fromTurn {
			continue
		}
		if toTurn > 0 && p.Turn > toTurn {
			continue
		}
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockPhaseRepo) ResolvePhase(_ context.Context, phaseID string, stateAfter json.RawMessage) error {
	for _, p := range m.phases {
		if p.ID == phaseID {
			p.StateAfter = stateAfter
			now := time.Now()
			p.ResolvedAt = &now
			return nil
		}
	}
	return fmt.Errorf("phase not found")
}

func (m *mockPhaseRepo) SetDeadline(_ context.Context, phaseID string, deadline time.Time) error {
	for _, p := range m.phases {
		if p.ID == phaseID {
			p.Deadline = deadline
			p.ReminderSentAt = nil
			return nil
		}
	}
	return fmt.Errorf("phase not found")
}

func (m *mockPhaseRepo) UpsertOrder(_ context.Context, o model.Order) error {
	rows := m.orders[o.PhaseID]
	for i, row := range rows {
		if row.Power == o.Power && row.Location == o.Location {
			o.ID = row.ID
			rows[i] = o
			return nil
		}
	}
	m.seq++
	o.ID = fmt.Sprintf("order-%d", m.seq)
	o.CreatedAt = time.Now()
	m.orders[o.PhaseID] = append(rows, o)
	return nil
}

func (m *mockPhaseRepo) ClearOrders(_ context.Context, phaseID, power string) error {
	var kept []model.Order
	for _, row := range m.orders[phaseID] {
		if row.Power != power {
			kept = append(kept, row)
		}
	}
	m.orders[phaseID] = kept
	return nil
}

func (m *mockPhaseRepo) OrdersByPhase(_ context.Context, phaseID string) ([]model.Order, error) {
	return m.orders[phaseID], nil
}

func (m *mockPhaseRepo) OrdersByPower(_ context.Context, phaseID, power string) ([]model.Order, error) {
	var result []model.Order
	for _, row := range m.orders[phaseID] {
		if row.Power == power {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *mockPhaseRepo) SaveResults(_ context.Context, phaseID string, orders []model.Order) error {
	m.orders[phaseID] = append([]model.Order(nil), orders...)
	return nil
}

func (m *mockPhaseRepo) ListExpired(_ context.Context) ([]model.Phase, error) {
	var result []model.Phase
	for _, p := range m.phases {
		if p.ResolvedAt == nil && p.Deadline.Before(time.Now()) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Deadline.Before(result[j].Deadline) })
	return result, nil
}

func (m *mockPhaseRepo) ListReminderDue(_ context.Context, within time.Duration) ([]model.Phase, error) {
	now := time.Now()
	var result []model.Phase
	for _, p := range m.phases {
		if p.ResolvedAt != nil || p.ReminderSentAt != nil {
			continue
		}
		if p.Deadline.After(now) && p.Deadline.Before(now.Add(within)) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPhaseRepo) MarkReminderSent(_ context.Context, phaseID string) error {
	for _, p := range m.phases {
		if p.ID == phaseID {
			now := time.Now()
			p.ReminderSentAt = &now
			return nil
		}
	}
	return fmt.Errorf("phase not found")
}

// mockCache implements repository.GameCache for testing.
type mockCache struct {
	states    map[string]json.RawMessage
	ready     map[string]map[string]bool
	timers    map[string]time.Time
	drawVotes map[string]map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{
		states:    make(map[string]json.RawMessage),
		ready:     make(map[string]map[string]bool),
		timers:    make(map[string]time.Time),
		drawVotes: make(map[string]map[string]bool),
	}
}

func (c *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.states[gameID] = state
	return nil
}

func (c *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	return c.states[gameID], nil
}

func (c *mockCache) MarkReady(_ context.Context, gameID, power string) error {
	if c.ready[gameID] == nil {
		c.ready[gameID] = make(map[string]bool)
	}
	c.ready[gameID][power] = true
	return nil
}

func (c *mockCache) UnmarkReady(_ context.Context, gameID, power string) error {
	if c.ready[gameID] != nil {
		delete(c.ready[gameID], power)
	}
	return nil
}

func (c *mockCache) ReadyCount(_ context.Context, gameID string) (int64, error) {
	return int64(len(c.ready[gameID])), nil
}

func (c *mockCache) ReadyPowers(_ context.Context, gameID string) ([]string, error) {
	var result []string
	for power := range c.ready[gameID] {
		result = append(result, power)
	}
	return result, nil
}

func (c *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.timers[gameID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, gameID string) error {
	delete(c.timers, gameID)
	return nil
}

func (c *mockCache) AddDrawVote(_ context.Context, gameID, power string) error {
	if c.drawVotes[gameID] == nil {
		c.drawVotes[gameID] = make(map[string]bool)
	}
	c.drawVotes[gameID][power] = true
	return nil
}

func (c *mockCache) RemoveDrawVote(_ context.Context, gameID, power string) error {
	if c.drawVotes[gameID] != nil {
		delete(c.drawVotes[gameID], power)
	}
	return nil
}

func (c *mockCache) DrawVoteCount(_ context.Context, gameID string) (int64, error) {
	return int64(len(c.drawVotes[gameID])), nil
}

func (c *mockCache) DrawVotePowers(_ context.Context, gameID string) ([]string, error) {
	var result []string
	for power := range c.drawVotes[gameID] {
		result = append(result, power)
	}
	return result, nil
}

func (c *mockCache) ClearPhaseData(_ context.Context, gameID string) error {
	delete(c.ready, gameID)
	delete(c.timers, gameID)
	delete(c.drawVotes, gameID)
	return nil
}

func (c *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	delete(c.states, gameID)
	delete(c.ready, gameID)
	delete(c.timers, gameID)
	delete(c.drawVotes, gameID)
	return nil
}

// recordingNotifier captures events for assertions. Safe for use from
// the scheduler's goroutines.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func (n *recordingNotifier) lastOfKind(kind string) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Kind == kind {
			return n.events[i], true
		}
	}
	return Event{}, false
}
