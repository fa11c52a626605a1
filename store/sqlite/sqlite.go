/*
Package sqlite provides the SQLite-backed implementation of every storage
interface the compensation engine consumes.

INTERFACES IMPLEMENTED:
  ledger.Store        Point ledger (append-only)
  network.MemberStore Member profiles
  bonus.Store         Bonus records
  engine.RunStore     Daily/monthly run records
  wallet.Store        Wallets, transaction log, settlement scope

IDEMPOTENCY AT THE SCHEMA:
  The engine's guards are unique indexes, not check-then-insert:
  - daily_runs(run_date) UNIQUE                      -> AlreadyRun
  - monthly_runs(period_year, period_month, kind)    -> AlreadyRun
  - wallet_transactions(bonus_id, kind) UNIQUE       -> AlreadyProcessed
  - bonuses(run_id, member_id, kind, bonus_date)     -> DuplicateAward
  - point_entries(member_id, entry_date, reference)  -> DuplicateEntry
  Constraint violations are translated to the domain sentinels on the way
  out, collapsing check-then-act into one atomic step.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE ever touches point_entries or wallet_transactions.

WAL MODE:
  Opened with WAL journaling: readers don't block, one writer at a time,
  better crash recovery.

CONCURRENCY:
  sync.RWMutex on top of the connection, as SQLite wants a single writer.
  With PostgreSQL the database's own concurrency control takes over; the
  SQL here is dialect-portable apart from minor details.
*/
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Point ledger (append-only)
	CREATE TABLE IF NOT EXISTS point_entries (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		leg TEXT NOT NULL,
		points INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		entry_date TEXT NOT NULL,
		source TEXT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_member_date
		ON point_entries(member_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_entries_member_leg
		ON point_entries(member_id, leg);

	-- CRITICAL: the same causing event may not credit the same member twice
	-- on one day. Event redelivery surfaces as DuplicateEntry, not as a
	-- second credit.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_event_once
		ON point_entries(member_id, entry_date, reference_id)
		WHERE reference_id != '';

	-- Members (deactivated, never deleted)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL,
		package_status TEXT NOT NULL DEFAULT 'active',
		sponsor_id TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		left_pp INTEGER NOT NULL DEFAULT 0,
		right_pp INTEGER NOT NULL DEFAULT 0,
		left_rp INTEGER NOT NULL DEFAULT 0,
		right_rp INTEGER NOT NULL DEFAULT 0,
		career_level TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_sponsor ON members(sponsor_id);
	CREATE INDEX IF NOT EXISTS idx_members_status ON members(package_status, id);
	CREATE INDEX IF NOT EXISTS idx_members_career ON members(career_level);

	-- Bonus records (inserted pending, mutated only by settlement)
	CREATE TABLE IF NOT EXISTS bonuses (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL,
		ewallet_amount INTEGER NOT NULL,
		cash_amount INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		bonus_date TEXT NOT NULL,
		period_month INTEGER NOT NULL,
		period_year INTEGER NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		CHECK (amount = ewallet_amount + cash_amount)
	);

	CREATE INDEX IF NOT EXISTS idx_bonuses_status ON bonuses(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_bonuses_member ON bonuses(member_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_bonuses_run ON bonuses(run_id);
	CREATE INDEX IF NOT EXISTS idx_bonuses_period ON bonuses(period_year, period_month, kind);

	-- A retried run must not award the same (member, kind, date) twice.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bonuses_award_once
		ON bonuses(run_id, member_id, kind, bonus_date)
		WHERE run_id != '';

	-- Run records: the unique index IS the idempotency guarantee
	CREATE TABLE IF NOT EXISTS daily_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		totals_json TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS monthly_runs (
		id TEXT PRIMARY KEY,
		period_month INTEGER NOT NULL,
		period_year INTEGER NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		totals_json TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE(period_year, period_month, kind)
	);

	-- Wallets and their append-only transaction log
	CREATE TABLE IF NOT EXISTS wallets (
		member_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL,
		bonus_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_txs_member
		ON wallet_transactions(member_id, created_at DESC);

	-- SECOND LINE OF DEFENSE: at most one credit per bonus, ever. Even a
	-- settlement race that slips past the status compare-and-set cannot
	-- produce a second credit row.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_txs_bonus_once
		ON wallet_transactions(bonus_id, kind)
		WHERE bonus_id != '';
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// isUniqueViolation recognizes a unique-constraint hit from the driver.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timeMonth(m int) time.Month { return time.Month(m) }

func scanNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
