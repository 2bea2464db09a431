package sync

import (
	"context"
	"sync"
	"time"

	"taskbridge/internal/utils"
)

// Scheduler is the single long-lived loop driving the engine: each tick
// pulls every configured calendar, drains the outbox and exports a
// snapshot. One in-process lock guards the whole pass so two passes never
// overlap, and the loop sleeps for the computed interval after a pass
// completes, so cadence is interval-between-completions rather than
// wall-clock ticks.
type Scheduler struct {
	mu          sync.Mutex
	engine      *Engine
	snapshotter *Snapshotter
	logger      *utils.Logger
}

// Default poll cadences.
const (
	DefaultActiveInterval = 1 * time.Minute
	DefaultIdleInterval   = 15 * time.Minute
)

// NewScheduler creates a scheduler over the engine.
func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine:      engine,
		snapshotter: NewSnapshotter(engine.store, engine.opts.SnapshotPath, engine.opts.SnapshotEvery),
		logger:      utils.GetLogger(),
	}
}

// Run loops until the context is cancelled. Cancellation lands between
// passes; a pass in flight always completes, and a context cancelled before
// the first pass means no pass runs at all.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("sync scheduler started (%d calendars)", len(s.engine.Calendars()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return nil
		default:
		}

		s.RunPass(ctx)

		interval := s.pollInterval(time.Now())
		s.logger.Debug("next sync pass in %s", interval)

		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

// RunPass executes one full pull+push+export sequence under the scheduler
// lock. Errors are logged and absorbed: a failing calendar or entry never
// halts the rest of the system.
func (s *Scheduler) RunPass(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cal := range s.engine.Calendars() {
		stats, err := s.engine.RunPull(ctx, cal.ID)
		if err != nil {
			s.logger.Error("pull failed for calendar %s: %v", cal.ID, err)
			continue
		}
		if stats.Created+stats.Updated+stats.Cancelled+stats.Conflicts > 0 {
			s.logger.Info("pulled %s: %d created, %d updated, %d cancelled, %d conflicts",
				cal.ID, stats.Created, stats.Updated, stats.Cancelled, stats.Conflicts)
		}
	}

	drained, err := s.engine.RunPushBatch(ctx, 0)
	if err != nil {
		s.logger.Error("outbox drain failed: %v", err)
	} else if drained.Processed > 0 {
		s.logger.Info("outbox drained: %d processed, %d succeeded, %d failed",
			drained.Processed, drained.Success, drained.Failed)
	}

	if err := s.snapshotter.MaybeExport(time.Now()); err != nil {
		s.logger.Error("snapshot export failed: %v", err)
	}
}

// pollInterval selects the active cadence while any calendar's active
// window covers now, the idle cadence otherwise.
func (s *Scheduler) pollInterval(now time.Time) time.Duration {
	active := s.engine.opts.ActiveInterval
	if active <= 0 {
		active = DefaultActiveInterval
	}
	idle := s.engine.opts.IdleInterval
	if idle <= 0 {
		idle = DefaultIdleInterval
	}

	anyActive, err := s.engine.store.AnyCursorActiveAt(now)
	if err != nil {
		s.logger.Error("failed to check active windows: %v", err)
		return idle
	}
	if anyActive {
		return active
	}
	return idle
}
