/*
Package engine provides the idempotent batch runners that turn ledger and
network state into bonus records.

PURPOSE:
  One DailyRunner per calendar date (Pairing, Matching, Leveling) and one
  MonthlyRunner per (month, year) (RepeatOrder, GlobalSharing). A run
  creates its run record first, processes the eligible population in
  fixed-size chunks, accumulates per-kind totals, and finalizes the record.

KEY CONCEPTS IN THIS FILE (types.go):
  - RunStatus: running -> completed, or failed (operator recovers)
  - DailyRun / MonthlyRun: one record per run key
  - RunTotals: per-kind aggregates plus processing counters
  - RunStore:  persistence with uniqueness on the run key

IDEMPOTENCY:
  At most one run per date (daily) or per period+kind (monthly). The store
  enforces this with a unique constraint; constraint violation IS the
  AlreadyRun signal. Check-then-insert as two steps would race.

FAILURE:
  A mid-run fault leaves the record failed, never completed. Bonus rows
  already written by the failed run stay inspectable via their run id; no
  automatic retry happens without operator confirmation.

SEE ALSO:
  - runner.go:  DailyRunner
  - monthly.go: MonthlyRunner
  - notify.go:  Fire-and-forget notification dispatch
*/
package engine

import (
	"context"
	"time"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// RUN STATUS
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// =============================================================================
// RUN TOTALS
// =============================================================================

// RunTotals aggregates what a run produced.
type RunTotals struct {
	ByKind map[bonus.Kind]money.Money

	BonusCount       int
	MembersProcessed int
	MembersSkipped   int
}

func NewRunTotals() RunTotals {
	return RunTotals{ByKind: make(map[bonus.Kind]money.Money)}
}

func (t *RunTotals) AddBonus(b *bonus.Bonus) {
	t.ByKind[b.Kind] = t.ByKind[b.Kind].Add(b.Amount)
	t.BonusCount++
}

// Total returns the aggregate for one kind.
func (t *RunTotals) Total(kind bonus.Kind) money.Money { return t.ByKind[kind] }

// Sum returns the grand total across all kinds.
func (t *RunTotals) Sum() money.Money {
	var sum money.Money
	for _, v := range t.ByKind {
		sum = sum.Add(v)
	}
	return sum
}

// =============================================================================
// RUN RECORDS
// =============================================================================

// DailyRun is one daily batch execution, keyed uniquely by Date.
type DailyRun struct {
	ID     string
	Date   ledger.Date
	Status RunStatus
	Totals RunTotals

	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// MonthlyKind distinguishes the two independent monthly runners.
type MonthlyKind string

const (
	MonthlyRepeatOrder   MonthlyKind = "repeat_order"
	MonthlyGlobalSharing MonthlyKind = "global_sharing"
)

// MonthlyRun is one monthly batch execution, keyed uniquely by
// (Period, Kind). RepeatOrder and GlobalSharing run independently of each
// other and of the daily runner.
type MonthlyRun struct {
	ID     string
	Period ledger.Period
	Kind   MonthlyKind
	Status RunStatus
	Totals RunTotals

	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunStore persists run records and enforces run-key uniqueness.
//
// CreateDaily and CreateMonthly must be atomic insert-with-unique-constraint
// operations; when a run already exists for the key they return an error
// unwrapping to bonus.ErrAlreadyRun. That single atomic step is the
// system's primary concurrency guard.
type RunStore interface {
	CreateDaily(ctx context.Context, run DailyRun) error
	UpdateDaily(ctx context.Context, run DailyRun) error
	GetDailyByDate(ctx context.Context, date ledger.Date) (*DailyRun, error)
	ListDaily(ctx context.Context, limit int) ([]DailyRun, error)

	// ResetDaily returns a non-completed run to running state for an
	// operator-confirmed retry. Must refuse completed runs.
	ResetDaily(ctx context.Context, id string) error

	CreateMonthly(ctx context.Context, run MonthlyRun) error
	UpdateMonthly(ctx context.Context, run MonthlyRun) error
	GetMonthly(ctx context.Context, period ledger.Period, kind MonthlyKind) (*MonthlyRun, error)
	ListMonthly(ctx context.Context, limit int) ([]MonthlyRun, error)
}
