package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"feedsync/internal/syncer"
)

// Scheduler drives recurring sync cycles: one delayed initial run at process
// start, then one run per configured interval. Overlapping ticks are rejected
// by the syncer's own guard and simply skipped here.
type Scheduler struct {
	ctx          context.Context
	cron         *cron.Cron
	syncer       *syncer.Syncer
	interval     time.Duration
	initialDelay time.Duration
	log          *slog.Logger

	mu           sync.Mutex
	initialTimer *time.Timer
}

func New(
	ctx context.Context,
	s *syncer.Syncer,
	interval time.Duration,
	initialDelay time.Duration,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ctx:          ctx,
		cron:         cron.New(cron.WithLocation(time.UTC)),
		syncer:       s,
		interval:     interval,
		initialDelay: initialDelay,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)

	if _, err := s.cron.AddFunc(spec, s.runCycle); err != nil {
		return fmt.Errorf("schedule sync cycle: %w", err)
	}

	s.cron.Start()

	s.mu.Lock()
	s.initialTimer = time.AfterFunc(s.initialDelay, s.runCycle)
	s.mu.Unlock()

	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.initialTimer != nil {
		s.initialTimer.Stop()
	}
	s.mu.Unlock()

	s.cron.Stop()
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	result, err := s.syncer.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			s.log.InfoContext(ctx, "Skipping tick: sync already in progress")
			return
		}

		s.log.ErrorContext(ctx, "Sync cycle failed",
			"error", err,
			"feedsProcessed", result.FeedsProcessed,
			"itemsAdded", result.ItemsAdded)

		return
	}

	s.log.InfoContext(ctx, "Scheduled sync cycle completed",
		"feedsProcessed", result.FeedsProcessed,
		"itemsAdded", result.ItemsAdded,
		"itemsPruned", result.ItemsPruned)
}
