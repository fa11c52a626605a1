package sqlite

import (
	"context"
	"fmt"

	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// POINT LEDGER (ledger.Store interface)
// =============================================================================

// Append persists one ledger entry. Append-only; duplicates by
// (member, date, reference) are rejected.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO point_entries
		(id, member_id, leg, points, balance_before, balance_after, entry_date, source, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.MemberID), string(e.Leg), int64(e.Points),
		int64(e.BalanceBefore), int64(e.BalanceAfter),
		e.Date.String(), string(e.Source), e.ReferenceID, formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: member %s ref %q on %s", ledger.ErrDuplicateEntry, e.MemberID, e.ReferenceID, e.Date)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// EntriesOn returns all entries for the member on one date.
func (s *Store) EntriesOn(ctx context.Context, member ledger.MemberID, date ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx, `
		SELECT id, member_id, leg, points, balance_before, balance_after, entry_date, source, reference_id, created_at
		FROM point_entries
		WHERE member_id = ? AND entry_date = ?
		ORDER BY created_at`,
		string(member), date.String())
}

// EntriesInPeriod returns all entries for the member within a month.
func (s *Store) EntriesInPeriod(ctx context.Context, member ledger.MemberID, period ledger.Period) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx, `
		SELECT id, member_id, leg, points, balance_before, balance_after, entry_date, source, reference_id, created_at
		FROM point_entries
		WHERE member_id = ? AND entry_date BETWEEN ? AND ?
		ORDER BY entry_date, created_at`,
		string(member), period.Start().String(), period.End().String())
}

// LegBalance sums the member's lifetime points on one leg.
func (s *Store) LegBalance(ctx context.Context, member ledger.MemberID, leg ledger.Leg) (ledger.Points, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM point_entries
		WHERE member_id = ? AND leg = ?`,
		string(member), string(leg),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("leg balance: %w", err)
	}
	return ledger.Points(total), nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e         ledger.Entry
			entryDate string
			createdAt string
		)
		if err := rows.Scan(
			&e.ID, &e.MemberID, &e.Leg, &e.Points,
			&e.BalanceBefore, &e.BalanceAfter,
			&entryDate, &e.Source, &e.ReferenceID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		d, err := ledger.ParseDate(entryDate)
		if err != nil {
			return nil, err
		}
		e.Date = d
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
