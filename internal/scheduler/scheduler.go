package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/internal/database"
)

// Notifier receives due-card reminders. The transport behind it (chat bot,
// mail, webhook) is an external collaborator.
type Notifier interface {
	SendReminder(agentID string, dueCount int) error
}

// Scheduler periodically scans the store for due cards and notifies the
// owning agents, within configured quiet hours.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     database.Store
	notifier  Notifier
	cfg       config.ReminderConfig
	log       *zap.Logger
}

// New creates a reminder scheduler.
func New(store database.Store, notifier Notifier, cfg config.ReminderConfig, log *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

// Start begins the periodic due-card sweep in the background.
func (s *Scheduler) Start() {
	s.scheduler.Every(s.cfg.Interval).Do(s.checkAndSendReminders)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders scans due counts per agent and notifies each one.
func (s *Scheduler) checkAndSendReminders() {
	now := time.Now().UTC()
	hour := now.Hour()
	if hour < s.cfg.StartHour || hour > s.cfg.EndHour {
		s.log.Debug("outside reminder hours, skipping sweep",
			zap.Int("hour", hour),
			zap.Int("start_hour", s.cfg.StartHour),
			zap.Int("end_hour", s.cfg.EndHour))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	counts, err := s.store.DueCounts(ctx, now)
	if err != nil {
		s.log.Error("due-count sweep failed", zap.Error(err))
		return
	}
	for agentID, count := range counts {
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminder(agentID, count); err != nil {
			s.log.Error("reminder failed",
				zap.String("agent_id", agentID),
				zap.Int("due_count", count),
				zap.Error(err))
		}
	}
}

// RunManualCheck forces a reminder for a specific agent, ignoring quiet
// hours.
func (s *Scheduler) RunManualCheck(ctx context.Context, agentID string) error {
	counts, err := s.store.DueCounts(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if count := counts[agentID]; count > 0 {
		return s.notifier.SendReminder(agentID, count)
	}
	return nil
}
