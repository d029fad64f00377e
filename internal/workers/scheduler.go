package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/investly/investly/internal/tasks"
)

// SettlementScheduler enqueues the settlement task on a cron schedule
type SettlementScheduler struct {
	enqueuer tasks.Enqueuer
	schedule cron.Schedule
	expr     string
	logger   zerolog.Logger
	nextRun  *time.Time
}

// NewSettlementScheduler parses a standard 5-field cron expression
func NewSettlementScheduler(enqueuer tasks.Enqueuer, expr string, logger zerolog.Logger) (*SettlementScheduler, error) {
	schedule, err := parseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement schedule %q: %w", expr, err)
	}
	return &SettlementScheduler{
		enqueuer: enqueuer,
		schedule: schedule,
		expr:     expr,
		logger:   logger,
	}, nil
}

// Run checks once a minute until ctx is cancelled
func (s *SettlementScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	s.Tick(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick enqueues a settlement run if one is due at now and reports whether it did
func (s *SettlementScheduler) Tick(now time.Time) bool {
	if s.nextRun != nil && s.nextRun.After(now) {
		s.logger.Debug().Time("next_run_at", *s.nextRun).Msg("Settlement not due yet")
		return false
	}

	// Unique keeps replicas of the worker from enqueueing the same run twice
	if _, err := s.enqueuer.Enqueue(tasks.NewSettleInvestmentsTask(), asynq.Unique(time.Minute)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue settlement task")
		return false
	}

	next := s.schedule.Next(now)
	s.nextRun = &next
	s.logger.Info().
		Str("schedule", s.expr).
		Time("next_run_at", next).
		Msg("Settlement task enqueued")
	return true
}

// NextRun is when the next settlement is due, nil before the first tick
func (s *SettlementScheduler) NextRun() *time.Time {
	return s.nextRun
}

func parseSchedule(expr string) (cron.Schedule, error) {
	// Standard 5-field format: minute hour day-of-month month day-of-week
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}
