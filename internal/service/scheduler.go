package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/config"
	"github.com/freeeve/diplomat/internal/repository"
)

// Scheduler drives time-based game progression: resolving phases whose
// deadlines have passed and sending one-shot deadline reminders. Expiry
// detection is two-tier: Redis keyspace notifications react within
// moments when available, and a Postgres poll catches anything the
// notifications miss.
type Scheduler struct {
	cfg       *config.Config
	rdb       *redis.Client
	phaseSvc  *PhaseService
	phaseRepo repository.PhaseRepository
	notifier  Notifier

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. A nil rdb disables the keyspace
// fast path, leaving the poller as the only trigger. A nil notifier
// disables reminders.
func NewScheduler(cfg *config.Config, rdb *redis.Client, phaseSvc *PhaseService, phaseRepo repository.PhaseRepository, notifier Notifier) *Scheduler {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Scheduler{
		cfg:       cfg,
		rdb:       rdb,
		phaseSvc:  phaseSvc,
		phaseRepo: phaseRepo,
		notifier:  notifier,
	}
}

// Start launches the expiry listener and the polling loop. Call Stop to
// shut them down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	// Deadlines that expired while the server was down resolve now
	// rather than waiting out the first tick.
	if s.cfg.ProcessMissedOnStartup {
		s.checkExpiredPhases(ctx)
	}

	if s.rdb != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.listenKeyspace(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(ctx)
	}()
}

// Stop terminates the scheduler's loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// listenKeyspace subscribes to Redis keyspace notifications for expired
// keys. Requires notify-keyspace-events to include Ex on the server.
func (s *Scheduler) listenKeyspace(ctx context.Context) {
	pubsub := s.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Keyspace listener started, listening for expired timers")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleExpiry(ctx, msg.Payload)
		}
	}
}

// poll periodically resolves overdue phases and sends deadline reminders.
func (s *Scheduler) poll(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.cfg.TickInterval).Msg("Deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Deadline poller stopped")
			return
		case <-ticker.C:
			s.checkExpiredPhases(ctx)
			s.sendReminders(ctx)
		}
	}
}

// checkExpiredPhases resolves every unresolved phase past its deadline,
// oldest first. One game's failure never blocks the rest.
func (s *Scheduler) checkExpiredPhases(ctx context.Context) {
	phases, err := s.phaseRepo.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired phases")
		return
	}
	if len(phases) > 0 {
		log.Info().Int("count", len(phases)).Msg("Poller found expired phases")
	}
	for _, p := range phases {
		log.Info().Str("gameId", p.GameID).Str("kind", p.Kind).
			Int("year", p.Year).Str("season", p.Season).
			Time("deadline", p.Deadline).Msg("Poller resolving expired phase")
		if err := s.phaseSvc.ProcessPhase(ctx, p.GameID); err != nil {
			log.Error().Err(err).Str("gameId", p.GameID).Msg("Phase resolution failed from poller")
		}
	}
}

// sendReminders emits one reminder per phase as its deadline nears. The
// sent mark is written first so a failing notify retries next tick and
// a delivered one never repeats.
func (s *Scheduler) sendReminders(ctx context.Context) {
	phases, err := s.phaseRepo.ListReminderDue(ctx, s.cfg.ReminderThreshold)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list phases due a reminder")
		return
	}
	for _, p := range phases {
		if err := s.phaseRepo.MarkReminderSent(ctx, p.ID); err != nil {
			log.Error().Err(err).Str("phaseId", p.ID).Msg("Failed to mark reminder sent")
			continue
		}
		s.notifier.Notify(newEvent(EventDeadlineReminder, p.GameID, p.Turn, p.Kind, map[string]any{
			"deadline": p.Deadline.Format(time.RFC3339),
		}))
		log.Info().Str("gameId", p.GameID).Time("deadline", p.Deadline).Msg("Deadline reminder sent")
	}
}

// handleExpiry processes an expired key. Only acts on game timer keys.
func (s *Scheduler) handleExpiry(ctx context.Context, key string) {
	if !strings.HasPrefix(key, "game:") || !strings.HasSuffix(key, ":timer") {
		return
	}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return
	}
	gameID := parts[1]

	log.Info().Str("gameId", gameID).Msg("Timer expired, triggering phase resolution")
	if err := s.phaseSvc.ProcessPhase(ctx, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Phase resolution failed after timer expiry")
	}
}
