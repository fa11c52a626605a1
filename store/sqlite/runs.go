package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// RUN STORE (engine.RunStore interface)
// =============================================================================
// The UNIQUE index on the run key makes CreateDaily/CreateMonthly the single
// atomically-observed step of the idempotency contract. A violation comes
// back as bonus.ErrAlreadyRun.

// CreateDaily inserts a new run record for a date.
func (s *Store) CreateDaily(ctx context.Context, run engine.DailyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_runs (id, run_date, status, totals_json, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Date.String(), string(run.Status), marshalTotals(run.Totals),
		formatTime(run.StartedAt), nullableTime(run.CompletedAt), run.Error,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: date %s", bonus.ErrAlreadyRun, run.Date)
		}
		return fmt.Errorf("create daily run: %w", err)
	}
	return nil
}

// UpdateDaily finalizes or fails a run record.
func (s *Store) UpdateDaily(ctx context.Context, run engine.DailyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_runs SET status = ?, totals_json = ?, completed_at = ?, error = ?
		WHERE id = ?`,
		string(run.Status), marshalTotals(run.Totals),
		nullableTime(run.CompletedAt), run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update daily run: %w", err)
	}
	return nil
}

// GetDailyByDate loads the run for a date, nil when none exists.
func (s *Store) GetDailyByDate(ctx context.Context, date ledger.Date) (*engine.DailyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_date, status, totals_json, started_at, completed_at, error
		FROM daily_runs WHERE run_date = ?`, date.String())
	run, err := scanDailyRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListDaily returns recent runs, newest first.
func (s *Store) ListDaily(ctx context.Context, limit int) ([]engine.DailyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_date, status, totals_json, started_at, completed_at, error
		FROM daily_runs ORDER BY run_date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list daily runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.DailyRun
	for rows.Next() {
		run, err := scanDailyRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ResetDaily returns a non-completed run to running for an operator retry.
// Completed runs are refused: a finished settlement is immutable.
func (s *Store) ResetDaily(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE daily_runs SET status = ?, completed_at = NULL, error = ''
		WHERE id = ? AND status != ?`,
		string(engine.RunRunning), id, string(engine.RunCompleted))
	if err != nil {
		return fmt.Errorf("reset daily run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", bonus.ErrAlreadyRun, id)
	}
	return nil
}

// CreateMonthly inserts a new run record for a (period, kind).
func (s *Store) CreateMonthly(ctx context.Context, run engine.MonthlyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_runs (id, period_month, period_year, kind, status, totals_json, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, int(run.Period.Month), run.Period.Year, string(run.Kind),
		string(run.Status), marshalTotals(run.Totals),
		formatTime(run.StartedAt), nullableTime(run.CompletedAt), run.Error,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: period %s kind %s", bonus.ErrAlreadyRun, run.Period, run.Kind)
		}
		return fmt.Errorf("create monthly run: %w", err)
	}
	return nil
}

// UpdateMonthly finalizes or fails a monthly run record.
func (s *Store) UpdateMonthly(ctx context.Context, run engine.MonthlyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE monthly_runs SET status = ?, totals_json = ?, completed_at = ?, error = ?
		WHERE id = ?`,
		string(run.Status), marshalTotals(run.Totals),
		nullableTime(run.CompletedAt), run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update monthly run: %w", err)
	}
	return nil
}

// GetMonthly loads the run for (period, kind), nil when none exists.
func (s *Store) GetMonthly(ctx context.Context, period ledger.Period, kind engine.MonthlyKind) (*engine.MonthlyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, period_month, period_year, kind, status, totals_json, started_at, completed_at, error
		FROM monthly_runs WHERE period_year = ? AND period_month = ? AND kind = ?`,
		period.Year, int(period.Month), string(kind))
	run, err := scanMonthlyRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListMonthly returns recent monthly runs, newest first.
func (s *Store) ListMonthly(ctx context.Context, limit int) ([]engine.MonthlyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_month, period_year, kind, status, totals_json, started_at, completed_at, error
		FROM monthly_runs ORDER BY period_year DESC, period_month DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list monthly runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.MonthlyRun
	for rows.Next() {
		run, err := scanMonthlyRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// =============================================================================
// SERIALIZATION
// =============================================================================

type totalsJSON struct {
	ByKind           map[string]int64 `json:"by_kind"`
	BonusCount       int              `json:"bonus_count"`
	MembersProcessed int              `json:"members_processed"`
	MembersSkipped   int              `json:"members_skipped"`
}

func marshalTotals(t engine.RunTotals) string {
	out := totalsJSON{
		ByKind:           make(map[string]int64, len(t.ByKind)),
		BonusCount:       t.BonusCount,
		MembersProcessed: t.MembersProcessed,
		MembersSkipped:   t.MembersSkipped,
	}
	for k, v := range t.ByKind {
		out.ByKind[string(k)] = int64(v)
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func unmarshalTotals(s string) engine.RunTotals {
	var in totalsJSON
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return engine.NewRunTotals()
	}
	t := engine.NewRunTotals()
	for k, v := range in.ByKind {
		t.ByKind[bonus.Kind(k)] = money.Money(v)
	}
	t.BonusCount = in.BonusCount
	t.MembersProcessed = in.MembersProcessed
	t.MembersSkipped = in.MembersSkipped
	return t
}

func scanDailyRun(r rowScanner) (*engine.DailyRun, error) {
	var (
		run                engine.DailyRun
		runDate, startedAt string
		totals             string
		completedAt        sql.NullString
	)
	err := r.Scan(&run.ID, &runDate, &run.Status, &totals, &startedAt, &completedAt, &run.Error)
	if err != nil {
		return nil, err
	}
	d, err := ledger.ParseDate(runDate)
	if err != nil {
		return nil, err
	}
	run.Date = d
	run.Totals = unmarshalTotals(totals)
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = scanNullableTime(completedAt)
	return &run, nil
}

func scanMonthlyRun(r rowScanner) (*engine.MonthlyRun, error) {
	var (
		run         engine.MonthlyRun
		periodMonth int
		totals      string
		startedAt   string
		completedAt sql.NullString
	)
	err := r.Scan(&run.ID, &periodMonth, &run.Period.Year, &run.Kind, &run.Status,
		&totals, &startedAt, &completedAt, &run.Error)
	if err != nil {
		return nil, err
	}
	run.Period.Month = timeMonth(periodMonth)
	run.Totals = unmarshalTotals(totals)
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = scanNullableTime(completedAt)
	return &run, nil
}
