/*
scheduler.go - Automated daily settlement scheduler

PURPOSE:
  Periodically triggers the daily settlement for the previous day so bonuses
  settle without an operator, while manual triggering stays available.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets yesterday: the day must be fully closed before it settles
  - The run store's uniqueness guard makes re-triggering harmless; an
    AlreadyRun result is the normal steady-state outcome
  - Failed runs are left for an operator retry, never retried blindly

USAGE:
  scheduler := NewSettlementScheduler(runner, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerDaily endpoint (manual settlement)
  - engine/runner.go: DailyRunner
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
)

// SettlementScheduler triggers the daily settlement on a timer.
type SettlementScheduler struct {
	Runner        *engine.DailyRunner
	CheckInterval time.Duration
	Enabled       bool
	Log           *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSettlementScheduler creates a new scheduler with a one-hour interval.
func NewSettlementScheduler(runner *engine.DailyRunner, log *zap.Logger) *SettlementScheduler {
	return &SettlementScheduler{
		Runner:        runner,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *SettlementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("settlement scheduler disabled")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Log.Info("settlement scheduler started",
		zap.Duration("check_interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *SettlementScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("settlement scheduler stopped")
	}
}

func (s *SettlementScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndSettle()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndSettle()
		case <-s.stop:
			return
		}
	}
}

func (s *SettlementScheduler) checkAndSettle() {
	ctx := context.Background()
	yesterday := ledger.Today().AddDays(-1)

	run, err := s.Runner.Run(ctx, yesterday)
	switch {
	case errors.Is(err, bonus.ErrAlreadyRun):
		// Steady state: yesterday is settled or awaiting operator retry.
	case err != nil:
		s.Log.Error("scheduled settlement failed",
			zap.String("date", yesterday.String()), zap.Error(err))
	default:
		s.Log.Info("scheduled settlement completed",
			zap.String("date", yesterday.String()),
			zap.Int("bonuses", run.Totals.BonusCount))
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (s *SettlementScheduler) RunNow() {
	s.checkAndSettle()
}
