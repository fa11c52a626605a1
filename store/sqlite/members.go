package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// MEMBER STORE (network.MemberStore interface)
// =============================================================================

const memberColumns = `id, user_id, name, tier, package_status, sponsor_id, position,
	left_pp, right_pp, left_rp, right_rp, career_level, created_at, updated_at`

// Member loads one profile.
func (s *Store) Member(ctx context.Context, id ledger.MemberID) (*network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, string(id))
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListActive pages through active members ordered by id.
func (s *Store) ListActive(ctx context.Context, offset, limit int) ([]network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members
		 WHERE package_status = ? ORDER BY id LIMIT ? OFFSET ?`,
		string(network.PackageActive), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()
	return collectMembers(rows)
}

// DirectDownlines returns the members directly sponsored by id.
func (s *Store) DirectDownlines(ctx context.Context, id ledger.MemberID) ([]network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE sponsor_id = ? ORDER BY id`,
		string(id))
	if err != nil {
		return nil, fmt.Errorf("direct downlines: %w", err)
	}
	defer rows.Close()
	return collectMembers(rows)
}

// Save upserts a profile.
func (s *Store) Save(ctx context.Context, m network.MemberProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	created := now
	if !m.CreatedAt.IsZero() {
		created = formatTime(m.CreatedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			tier = excluded.tier,
			package_status = excluded.package_status,
			sponsor_id = excluded.sponsor_id,
			position = excluded.position,
			left_pp = excluded.left_pp,
			right_pp = excluded.right_pp,
			left_rp = excluded.left_rp,
			right_rp = excluded.right_rp,
			career_level = excluded.career_level,
			updated_at = excluded.updated_at`,
		string(m.ID), m.UserID, m.Name, string(m.Tier), string(m.PackageStatus),
		string(m.SponsorID), string(m.Position),
		int64(m.PairingTotals.Left), int64(m.PairingTotals.Right),
		int64(m.RewardTotals.Left), int64(m.RewardTotals.Right),
		m.CareerLevel, created, now,
	)
	if err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	return nil
}

// UpdateCareerLevel records a career upgrade.
func (s *Store) UpdateCareerLevel(ctx context.Context, id ledger.MemberID, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET career_level = ?, updated_at = ? WHERE id = ?`,
		level, formatTime(time.Now()), string(id))
	if err != nil {
		return fmt.Errorf("update career level: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	return nil
}

// AddPairingPoints adjusts cumulative leg totals after a ledger posting.
func (s *Store) AddPairingPoints(ctx context.Context, id ledger.MemberID, leg ledger.Leg, points ledger.Points) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	column := "left_pp"
	if leg == ledger.LegRight {
		column = "right_pp"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET `+column+` = `+column+` + ?, updated_at = ? WHERE id = ?`,
		int64(points), formatTime(time.Now()), string(id))
	if err != nil {
		return fmt.Errorf("add pairing points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(r rowScanner) (*network.MemberProfile, error) {
	var (
		m                    network.MemberProfile
		createdAt, updatedAt string
	)
	err := r.Scan(
		&m.ID, &m.UserID, &m.Name, &m.Tier, &m.PackageStatus,
		&m.SponsorID, &m.Position,
		&m.PairingTotals.Left, &m.PairingTotals.Right,
		&m.RewardTotals.Left, &m.RewardTotals.Right,
		&m.CareerLevel, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func collectMembers(rows *sql.Rows) ([]network.MemberProfile, error) {
	var members []network.MemberProfile
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
