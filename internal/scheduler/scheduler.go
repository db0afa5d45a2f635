// Package scheduler fires the scheduled sweep at the top of every hour in the
// configured timezone.
package scheduler

import (
	"context"
	"errors"
	"time"

	"simbank/internal/core"
	applog "simbank/internal/log"
	"simbank/internal/services"
)

// Sweeper runs one sweep unless one is already in flight.
type Sweeper interface {
	SweepExclusive(ctx context.Context, now time.Time) (report services.SweepReport, skipped bool, err error)
}

type Scheduler struct {
	sweeper Sweeper
	loc     *time.Location
	logger  *applog.Logger
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
}

func New(sweeper Sweeper, loc *time.Location, logger *applog.Logger) (*Scheduler, error) {
	if sweeper == nil {
		return nil, errors.New("scheduler: nil sweeper")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Scheduler{
		sweeper: sweeper,
		loc:     loc,
		logger:  logger.WithComponent(applog.ComponentScheduler),
		now:     time.Now,
		after:   time.After,
	}, nil
}

// NextHour returns the first top of an hour in loc strictly after now.
func NextHour(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
	// time.Date may resolve a repeated wall-clock hour to its first occurrence.
	for !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}

// Run sweeps at every top of the hour until ctx is canceled. Sweep errors are
// logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "Scheduler stopped")
			return nil
		}
		next := NextHour(s.now(), s.loc)
		s.logger.DebugContext(ctx, "Next sweep scheduled", "next_run", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler stopped")
			return nil
		case <-s.after(next.Sub(s.now())):
		}

		s.RunOnce(ctx, next)
	}
}

// RunOnce performs one sweep for the hour at instant and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context, instant time.Time) {
	report, skipped, err := s.sweeper.SweepExclusive(ctx, instant)
	switch {
	case skipped:
		s.logger.WarnContext(ctx, "Previous sweep still running, skipping", applog.FieldDay, core.DayKey(instant, s.loc))
	case err != nil:
		s.logger.ErrorContext(ctx, "Sweep failed", applog.FieldError, err.Error())
	default:
		s.logger.InfoContext(ctx, "Scheduled sweep finished",
			applog.FieldDay, report.Day,
			applog.FieldCreated, len(report.Created),
			applog.FieldFailures, len(report.Failures))
	}
}
