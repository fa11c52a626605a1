package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// BONUS STORE (bonus.Store interface)
// =============================================================================

const bonusColumns = `id, member_id, kind, amount, ewallet_amount, cash_amount, status,
	bonus_date, period_month, period_year, run_id, decided_by, decided_at, reject_reason, created_at`

// Insert writes a new pending bonus. The award-once index rejects a retry
// duplicate as bonus.ErrDuplicateAward.
func (s *Store) Insert(ctx context.Context, b *bonus.Bonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertBonus(ctx, s.db, b)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBonus(ctx context.Context, db execer, b *bonus.Bonus) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bonuses (`+bonusColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.ID), string(b.MemberID), string(b.Kind),
		int64(b.Amount), int64(b.EWalletAmount), int64(b.CashAmount),
		string(b.Status), b.BonusDate.String(),
		int(b.Period.Month), b.Period.Year, b.RunID,
		b.DecidedBy, nullableTime(b.DecidedAt), b.RejectReason,
		formatTime(b.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s on %s", bonus.ErrDuplicateAward, b.MemberID, b.Kind, b.BonusDate)
		}
		return fmt.Errorf("insert bonus: %w", err)
	}
	return nil
}

// Get loads one bonus by id.
func (s *Store) Get(ctx context.Context, id bonus.BonusID) (*bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBonus(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBonus(ctx context.Context, db querier, id bonus.BonusID) (*bonus.Bonus, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bonusColumns+` FROM bonuses WHERE id = ?`, string(id))
	b, err := scanBonus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", bonus.ErrBonusNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListByStatus returns bonuses in one settlement status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status bonus.Status, limit int) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBonuses(ctx, `
		SELECT `+bonusColumns+` FROM bonuses
		WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(status), limit)
}

// ListByRun returns every bonus a run produced.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBonuses(ctx, `
		SELECT `+bonusColumns+` FROM bonuses
		WHERE run_id = ? ORDER BY member_id, kind`, runID)
}

// ListByMember returns a member's bonuses, newest first.
func (s *Store) ListByMember(ctx context.Context, member ledger.MemberID, limit int) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBonuses(ctx, `
		SELECT `+bonusColumns+` FROM bonuses
		WHERE member_id = ? ORDER BY created_at DESC LIMIT ?`,
		string(member), limit)
}

// ListByPeriod returns bonuses of one kind for a settlement period.
func (s *Store) ListByPeriod(ctx context.Context, period ledger.Period, kind bonus.Kind) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBonuses(ctx, `
		SELECT `+bonusColumns+` FROM bonuses
		WHERE period_year = ? AND period_month = ? AND kind = ?
		ORDER BY member_id`,
		period.Year, int(period.Month), string(kind))
}

func (s *Store) queryBonuses(ctx context.Context, query string, args ...any) ([]bonus.Bonus, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []bonus.Bonus
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		bonuses = append(bonuses, *b)
	}
	return bonuses, rows.Err()
}

func scanBonus(r rowScanner) (*bonus.Bonus, error) {
	var (
		b           bonus.Bonus
		bonusDate   string
		periodMonth int
		decidedAt   sql.NullString
		createdAt   string
	)
	err := r.Scan(
		&b.ID, &b.MemberID, &b.Kind,
		&b.Amount, &b.EWalletAmount, &b.CashAmount, &b.Status,
		&bonusDate, &periodMonth, &b.Period.Year, &b.RunID,
		&b.DecidedBy, &decidedAt, &b.RejectReason, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	d, err := ledger.ParseDate(bonusDate)
	if err != nil {
		return nil, err
	}
	b.BonusDate = d
	b.Period.Month = timeMonth(periodMonth)
	b.DecidedAt = scanNullableTime(decidedAt)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}
