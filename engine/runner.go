/*
runner.go - The daily bonus run orchestrator

PURPOSE:
  RunDaily(date) computes Pairing, Matching and Leveling bonuses for every
  active member, exactly once per calendar date.

CONTRACT:
  - Fails with AlreadyRun when a completed run exists for the date.
  - The run record is created atomically under a unique constraint before
    any member is processed; two concurrent invocations cannot both win.
  - Members are processed in fixed-size chunks to bound memory, not for
    correctness; per-member results are independent and order-insensitive.
  - A member with missing package configuration is skipped with a warning;
    the batch continues.
  - Any storage fault marks the run failed (never completed) and surfaces
    the error. Bonus rows already written stay inspectable via the run id.
  - Retry of a failed run is an explicit operator action (Retry), never
    automatic.

SIDE EFFECTS PER MEMBER:
  - A produced pairing bonus queues a pending-approval notification
    (fire-and-forget; delivery failure never rolls anything back).
  - The career level is re-resolved from cumulative leg totals and
    upgraded when the ladder says so.
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
// DAILY RUNNER
// =============================================================================

type DailyRunner struct {
	Runs      RunStore
	Bonuses   bonus.Store
	Calc      *bonus.Calculator
	Directory *network.Directory
	Notifier  Notifier

	// ChunkSize bounds how many members are loaded per page.
	ChunkSize int

	Log *zap.Logger
}

// Run executes the daily run for a date.
func (r *DailyRunner) Run(ctx context.Context, date ledger.Date) (*DailyRun, error) {
	run := DailyRun{
		ID:        uuid.NewString(),
		Date:      date,
		Status:    RunRunning,
		Totals:    NewRunTotals(),
		StartedAt: time.Now().UTC(),
	}

	if err := r.Runs.CreateDaily(ctx, run); err != nil {
		if errors.Is(err, bonus.ErrAlreadyRun) {
			return nil, r.describeExisting(ctx, date)
		}
		return nil, fmt.Errorf("create run record: %w", err)
	}

	return r.execute(ctx, run)
}

// Retry re-executes a failed or interrupted run. This is the
// operator-confirmed recovery path; completed runs are refused. Bonuses
// written by the earlier attempt are recognized by their award key and not
// duplicated.
func (r *DailyRunner) Retry(ctx context.Context, date ledger.Date) (*DailyRun, error) {
	existing, err := r.Runs.GetDailyByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return r.Run(ctx, date)
	}
	if existing.Status == RunCompleted {
		return nil, &bonus.AlreadyRunError{Key: date.String()}
	}

	if err := r.Runs.ResetDaily(ctx, existing.ID); err != nil {
		return nil, fmt.Errorf("reset run: %w", err)
	}

	run := *existing
	run.Status = RunRunning
	run.Totals = NewRunTotals()
	run.StartedAt = time.Now().UTC()
	run.CompletedAt = nil
	run.Error = ""
	return r.execute(ctx, run)
}

// describeExisting turns a unique-constraint hit into the right caller error.
func (r *DailyRunner) describeExisting(ctx context.Context, date ledger.Date) error {
	existing, err := r.Runs.GetDailyByDate(ctx, date)
	if err != nil || existing == nil {
		return &bonus.AlreadyRunError{Key: date.String()}
	}
	if existing.Status == RunCompleted {
		return &bonus.AlreadyRunError{Key: date.String()}
	}
	return fmt.Errorf("run for %s exists in status %s; operator retry required", date, existing.Status)
}

func (r *DailyRunner) execute(ctx context.Context, run DailyRun) (*DailyRun, error) {
	start := time.Now()
	log := r.Log.With(zap.String("run_id", run.ID), zap.String("date", run.Date.String()))
	log.Info("daily run started")

	chunk := r.ChunkSize
	if chunk <= 0 {
		chunk = 200
	}

	members := r.Directory.Members()
	for offset := 0; ; offset += chunk {
		page, err := members.ListActive(ctx, offset, chunk)
		if err != nil {
			return nil, r.fail(ctx, run, fmt.Errorf("list members: %w", err))
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			if err := r.processMember(ctx, &run, &page[i], log); err != nil {
				return nil, r.fail(ctx, run, err)
			}
		}

		if len(page) < chunk {
			break
		}
	}

	now := time.Now().UTC()
	run.Status = RunCompleted
	run.CompletedAt = &now
	if err := r.Runs.UpdateDaily(ctx, run); err != nil {
		return nil, r.fail(ctx, run, fmt.Errorf("finalize run record: %w", err))
	}

	runsTotal.WithLabelValues("daily", "completed").Inc()
	runDuration.WithLabelValues("daily").Observe(time.Since(start).Seconds())
	log.Info("daily run completed",
		zap.Int("members_processed", run.Totals.MembersProcessed),
		zap.Int("members_skipped", run.Totals.MembersSkipped),
		zap.Int("bonuses", run.Totals.BonusCount))
	return &run, nil
}

func (r *DailyRunner) processMember(ctx context.Context, run *DailyRun, m *network.MemberProfile, log *zap.Logger) error {
	type calc func(context.Context, *network.MemberProfile, ledger.Date, string) (*bonus.Bonus, error)

	for _, compute := range []calc{r.Calc.Pairing, r.Calc.Matching, r.Calc.Leveling} {
		b, err := compute(ctx, m, run.Date, run.ID)
		if err != nil {
			if bonus.IsSkip(err) {
				run.Totals.MembersSkipped++
				membersSkipped.Inc()
				log.Warn("member skipped", zap.String("member_id", string(m.ID)), zap.Error(err))
				return nil
			}
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		if b == nil {
			continue
		}

		if err := r.record(ctx, run, b); err != nil {
			return err
		}
	}

	r.maybeUpgradeCareer(ctx, m, log)

	run.Totals.MembersProcessed++
	return nil
}

// record inserts a bonus and accumulates totals. A duplicate award key
// means an earlier attempt of this run already wrote the row; the
// calculators are deterministic, so the amount is counted and the member
// is not re-notified.
func (r *DailyRunner) record(ctx context.Context, run *DailyRun, b *bonus.Bonus) error {
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

	if b.Kind == bonus.KindPairing {
		r.Notifier.Notify(Notification{
			Kind:     NotifyBonusPending,
			MemberID: b.MemberID,
			Payload: map[string]any{
				"bonus_id": string(b.ID),
				"kind":     string(b.Kind),
				"amount":   int64(b.Amount),
				"date":     b.BonusDate.String(),
			},
		})
	}
	return nil
}

// maybeUpgradeCareer re-resolves the member's career level from cumulative
// leg totals. Resolution is gated by the smaller leg, so levels only ever
// move up here. Failures are logged and contained.
func (r *DailyRunner) maybeUpgradeCareer(ctx context.Context, m *network.MemberProfile, log *zap.Logger) {
	resolved := r.Directory.Ladder().Resolve(m.PairingTotals)
	if resolved.Name == "" || resolved.Name == m.CareerLevel {
		return
	}
	if current, ok := r.Directory.Ladder().Level(m.CareerLevel); ok && current.RequiredPP >= resolved.RequiredPP {
		return
	}

	if err := r.Directory.Members().UpdateCareerLevel(ctx, m.ID, resolved.Name); err != nil {
		log.Warn("career upgrade failed",
			zap.String("member_id", string(m.ID)),
			zap.String("level", resolved.Name),
			zap.Error(err))
		return
	}
	m.CareerLevel = resolved.Name

	r.Notifier.Notify(Notification{
		Kind:     NotifyCareerUpgrade,
		MemberID: m.ID,
		Payload:  map[string]any{"level": resolved.Name},
	})
}

// fail marks the run failed and surfaces the cause. The record must never
// read completed after a fault.
func (r *DailyRunner) fail(ctx context.Context, run DailyRun, cause error) error {
	run.Status = RunFailed
	run.Error = cause.Error()
	if err := r.Runs.UpdateDaily(ctx, run); err != nil {
		r.Log.Error("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	runsTotal.WithLabelValues("daily", "failed").Inc()
	r.Log.Error("daily run failed", zap.String("run_id", run.ID), zap.Error(cause))
	return cause
}
