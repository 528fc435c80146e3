package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"mindcheck-bot/internal/checkin"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/reminders"
	"mindcheck-bot/internal/session"
)

// Store is what the reminder job reads.
type Store interface {
	ListReminderTargets(ctx context.Context) ([]models.ReminderTarget, error)
	GetCheckin(ctx context.Context, userID int64, day time.Time) (*models.Checkin, error)
}

// Sender delivers one reminder.
type Sender interface {
	SendReminder(ctx context.Context, t models.ReminderTarget) error
}

const tickTimeout = 50 * time.Second

type Scheduler struct {
	cron    gocron.Scheduler
	store   Store
	sender  Sender
	sweeper session.Sweeper
	now     func() time.Time
	log     *slog.Logger

	mu   sync.Mutex
	sent map[string]time.Time
}

// New builds the scheduler. sweeper may be nil when sessions expire on their own (Redis).
func New(store Store, sender Sender, sweeper session.Sweeper, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		cron:    cron,
		store:   store,
		sender:  sender,
		sweeper: sweeper,
		now:     time.Now,
		log:     logger,
		sent:    make(map[string]time.Time),
	}, nil
}

// Start registers the minute jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	// Регистрируем задачу с периодом 1 минута
	_, err := s.cron.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			defer cancel()
			s.Tick(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register reminder job: %w", err)
	}

	if s.sweeper != nil {
		_, err = s.cron.NewJob(
			gocron.DurationJob(time.Minute),
			gocron.NewTask(func() {
				if n := s.sweeper.Sweep(s.now()); n > 0 {
					s.log.Debug("expired sessions swept", "count", n)
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("register sweep job: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// Due reports whether any of times equals the current local HH:MM in tz.
// It returns the matching time and the local day. An unknown tz is evaluated in UTC.
func Due(now time.Time, tz string, times []string) (hhmm string, day time.Time, ok bool) {
	day, _ = checkin.LocalDay(now, tz)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	current := now.In(loc).Format("15:04")
	for _, t := range times {
		if t == current {
			return t, day, true
		}
	}
	return "", day, false
}

// Tick runs one reminder pass.
func (s *Scheduler) Tick(ctx context.Context) {
	targets, err := s.store.ListReminderTargets(ctx)
	if err != nil {
		s.log.Error("list reminder targets", "error", err)
		return
	}

	now := s.now()
	s.prune(now)

	for _, t := range targets {
		hhmm, day, ok := Due(now, t.Timezone, reminders.Split(t.Times))
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%s|%s", t.ChatID, day.Format("2006-01-02"), hhmm)
		if !s.claim(key, now) {
			continue
		}

		log := s.log.With("chat_id", t.ChatID, "user_id", t.UserID, "time", hhmm)
		existing, err := s.store.GetCheckin(ctx, t.UserID, day)
		if err != nil {
			log.Error("check today's checkin", "error", err)
			continue
		}
		if existing != nil {
			log.Debug("reminder skipped, checkin already done")
			continue
		}
		if err := s.sender.SendReminder(ctx, t); err != nil {
			log.Error("send reminder", "error", err)
			continue
		}
		log.Info("reminder sent")
	}
}

// claim records key and reports whether it was new.
func (s *Scheduler) claim(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sent[key]; ok {
		return false
	}
	s.sent[key] = now
	return true
}

func (s *Scheduler) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.sent {
		if now.Sub(at) > 48*time.Hour {
			delete(s.sent, k)
		}
	}
}
