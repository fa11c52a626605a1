/*
monthly.go - The monthly bonus run orchestrators

PURPOSE:
  RunRepeatOrder(period) and RunGlobalSharing(period) settle the two
  monthly bonus kinds. Each is keyed by (month, year, kind) so they run
  independently of each other and of the daily runner, under the same
  insert-with-unique-constraint idempotency contract.

PERIOD CLOSURE:
  Both runners refuse a period that has not ended yet. Global sharing in
  particular divides the month's final repeat-order revenue pool; a
  mid-month figure would understate every share.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// MONTHLY RUNNER
// =============================================================================

type MonthlyRunner struct {
	Runs      RunStore
	Bonuses   bonus.Store
	Calc      *bonus.Calculator
	Directory *network.Directory

	ChunkSize int

	Log *zap.Logger
}

// RunRepeatOrder settles the repeat-order bonus for a closed period.
func (r *MonthlyRunner) RunRepeatOrder(ctx context.Context, period ledger.Period) (*MonthlyRun, error) {
	return r.run(ctx, period, MonthlyRepeatOrder, r.repeatOrderBody)
}

// RunGlobalSharing settles the global-sharing bonus for a closed period.
func (r *MonthlyRunner) RunGlobalSharing(ctx context.Context, period ledger.Period) (*MonthlyRun, error) {
	return r.run(ctx, period, MonthlyGlobalSharing, r.globalSharingBody)
}

type monthlyBody func(ctx context.Context, run *MonthlyRun, members []network.MemberProfile) error

func (r *MonthlyRunner) run(ctx context.Context, period ledger.Period, kind MonthlyKind, body monthlyBody) (*MonthlyRun, error) {
	if !period.End().Before(ledger.Today()) {
		return nil, fmt.Errorf("%w: period %s not closed yet", ledger.ErrInvalidPeriod, period)
	}

	run := MonthlyRun{
		ID:        uuid.NewString(),
		Period:    period,
		Kind:      kind,
		Status:    RunRunning,
		Totals:    NewRunTotals(),
		StartedAt: time.Now().UTC(),
	}

	if err := r.Runs.CreateMonthly(ctx, run); err != nil {
		if errors.Is(err, bonus.ErrAlreadyRun) {
			return nil, &bonus.AlreadyRunError{Key: fmt.Sprintf("%s/%s", period, kind)}
		}
		return nil, fmt.Errorf("create run record: %w", err)
	}

	start := time.Now()
	log := r.Log.With(zap.String("run_id", run.ID), zap.String("period", period.String()), zap.String("kind", string(kind)))
	log.Info("monthly run started")

	members, err := r.allActive(ctx)
	if err != nil {
		return nil, r.fail(ctx, run, fmt.Errorf("list members: %w", err))
	}

	if err := body(ctx, &run, members); err != nil {
		return nil, r.fail(ctx, run, err)
	}

	now := time.Now().UTC()
	run.Status = RunCompleted
	run.CompletedAt = &now
	if err := r.Runs.UpdateMonthly(ctx, run); err != nil {
		return nil, r.fail(ctx, run, fmt.Errorf("finalize run record: %w", err))
	}

	runsTotal.WithLabelValues("monthly_"+string(kind), "completed").Inc()
	runDuration.WithLabelValues("monthly").Observe(time.Since(start).Seconds())
	log.Info("monthly run completed", zap.Int("bonuses", run.Totals.BonusCount))
	return &run, nil
}

func (r *MonthlyRunner) repeatOrderBody(ctx context.Context, run *MonthlyRun, members []network.MemberProfile) error {
	for i := range members {
		m := &members[i]
		b, err := r.Calc.RepeatOrder(ctx, m, run.Period, run.ID)
		if err != nil {
			if bonus.IsSkip(err) {
				run.Totals.MembersSkipped++
				membersSkipped.Inc()
				continue
			}
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		if b == nil {
			run.Totals.MembersProcessed++
			continue
		}
		if err := r.record(ctx, run, b); err != nil {
			return err
		}
		run.Totals.MembersProcessed++
	}
	return nil
}

func (r *MonthlyRunner) globalSharingBody(ctx context.Context, run *MonthlyRun, members []network.MemberProfile) error {
	pool, err := r.Calc.NationalRORevenue(ctx, members, run.Period)
	if err != nil {
		return fmt.Errorf("national repeat-order revenue: %w", err)
	}

	// Head counts per level from the same member snapshot the shares are
	// paid against, so the divisor matches the payees.
	atLevel := make(map[string]int)
	for i := range members {
		atLevel[members[i].CareerLevel]++
	}

	for i := range members {
		m := &members[i]
		b, err := r.Calc.GlobalSharing(ctx, m, run.Period, pool, atLevel[m.CareerLevel], run.ID)
		if err != nil {
			if bonus.IsSkip(err) {
				run.Totals.MembersSkipped++
				membersSkipped.Inc()
				continue
			}
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		if b == nil {
			run.Totals.MembersProcessed++
			continue
		}
		if err := r.record(ctx, run, b); err != nil {
			return err
		}
		run.Totals.MembersProcessed++
	}
	return nil
}

func (r *MonthlyRunner) record(ctx context.Context, run *MonthlyRun, b *bonus.Bonus) error {
	err := r.Bonuses.Insert(ctx, b)
	if err != nil {
		if errors.Is(err, bonus.ErrDuplicateAward) {
			run.Totals.AddBonus(b)
			return nil
		}
		return fmt.Errorf("insert %s bonus for %s: %w", b.Kind, b.MemberID, err)
	}
	run.Totals.AddBonus(b)
	bonusesComputed.WithLabelValues(string(b.Kind)).Inc()
	return nil
}

// allActive pages through the active population. Monthly runs hold the
// full snapshot in memory because global sharing needs population-wide
// aggregates before the first bonus can be computed.
func (r *MonthlyRunner) allActive(ctx context.Context) ([]network.MemberProfile, error) {
	chunk := r.ChunkSize
	if chunk <= 0 {
		chunk = 200
	}

	var all []network.MemberProfile
	for offset := 0; ; offset += chunk {
		page, err := r.Directory.Members().ListActive(ctx, offset, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < chunk {
			return all, nil
		}
	}
}

func (r *MonthlyRunner) fail(ctx context.Context, run MonthlyRun, cause error) error {
	run.Status = RunFailed
	run.Error = cause.Error()
	if err := r.Runs.UpdateMonthly(ctx, run); err != nil {
		r.Log.Error("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	runsTotal.WithLabelValues("monthly_"+string(run.Kind), "failed").Inc()
	r.Log.Error("monthly run failed", zap.String("run_id", run.ID), zap.Error(cause))
	return cause
}
