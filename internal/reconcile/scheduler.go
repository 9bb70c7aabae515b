package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// runTimeout bounds a single scheduled run so a stuck content store
// cannot wedge the scheduler until the next restart.
const runTimeout = 30 * time.Minute

// Scheduler runs the reconciler on a fixed interval.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
	stop       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewScheduler creates a new scheduler.
func NewScheduler(reconciler *Reconciler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		stop:       make(chan struct{}),
		logger:     logger.With("component", "reconcile-scheduler"),
	}
}

// Start begins periodic reconciliation.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting", "interval", s.interval)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping")
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if _, err := s.reconciler.Run(runCtx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Debug("skipping scheduled run, one already active")
			return
		}
		s.logger.Error("scheduled reconciliation failed", "error", err)
	}
}
