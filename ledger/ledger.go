/*
ledger.go - Append-only point ledger

PURPOSE:
  The Ledger is the source of truth for pairing-point volume. Every credit
  is recorded as an immutable Entry; daily gained totals and lifetime leg
  balances are always derived by summing entries.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. Ever.
  2. SUMMED, NOT DIFFED: Multiple entries for one (member, leg, date) are
     summed by readers. Concurrent appends cannot corrupt totals.
  3. IDEMPOTENT: An entry carries a reference to its causing event; the same
     event reference on the same day is rejected as a duplicate.

CORRECTIONS:
  Mistaken credits are corrected with a negative SourceAdjustment entry,
  never by editing history.

SEE ALSO:
  - types.go: Entry and aggregate types
  - store/sqlite: persistent Store implementation
  - store/memory: in-memory Store for tests
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateEntry is returned when an entry with the same reference
	// already exists for the member and day. Expected on event redelivery.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrInvalidLeg is returned for a leg outside {left, right}.
	ErrInvalidLeg = errors.New("invalid leg")
)

// =============================================================================
// STORE - Persistence contract (append-only)
// =============================================================================

// Store persists ledger entries. Implementations must reject duplicate
// (member, date, reference) rows; there are no update or delete operations.
type Store interface {
	// Append persists one entry. Returns ErrDuplicateEntry when an entry
	// with the same member, date and reference already exists.
	Append(ctx context.Context, e Entry) error

	// EntriesOn returns all entries credited to the member for the date.
	EntriesOn(ctx context.Context, member MemberID, date Date) ([]Entry, error)

	// EntriesInPeriod returns all entries for the member within the period.
	EntriesInPeriod(ctx context.Context, member MemberID, period Period) ([]Entry, error)

	// LegBalance returns the lifetime sum of the member's entries on a leg.
	LegBalance(ctx context.Context, member MemberID, leg Leg) (Points, error)
}

// =============================================================================
// LEDGER - Domain operations over the store
// =============================================================================

// Ledger exposes the point-ledger operations the engine consumes.
type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Credit appends a point credit for the member's leg on the given date.
// The balance snapshots are taken from the current leg sum; they are audit
// metadata, and a concurrent credit racing this one only skews the snapshot,
// never the summed totals.
func (l *Ledger) Credit(ctx context.Context, member MemberID, leg Leg, points Points, date Date, source Source, referenceID string) (Entry, error) {
	if !leg.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidLeg, leg)
	}

	before, err := l.store.LegBalance(ctx, member, leg)
	if err != nil {
		return Entry{}, fmt.Errorf("leg balance: %w", err)
	}

	e := Entry{
		ID:            EntryID(uuid.NewString()),
		MemberID:      member,
		Leg:           leg,
		Points:        points,
		BalanceBefore: before,
		BalanceAfter:  before + points,
		Date:          date,
		Source:        source,
		ReferenceID:   referenceID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := l.store.Append(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// EntriesOn returns the member's raw ledger entries for exactly the given
// date, for audit display.
func (l *Ledger) EntriesOn(ctx context.Context, member MemberID, date Date) ([]Entry, error) {
	return l.store.EntriesOn(ctx, member, date)
}

// GainedOn returns the member's left/right point totals credited for exactly
// the given date. This is the pairing matcher's input.
func (l *Ledger) GainedOn(ctx context.Context, member MemberID, date Date) (LegTotals, error) {
	entries, err := l.store.EntriesOn(ctx, member, date)
	if err != nil {
		return LegTotals{}, err
	}

	var totals LegTotals
	for _, e := range entries {
		totals = totals.Add(e.Leg, e.Points)
	}
	return totals, nil
}

// LifetimeTotals returns the member's cumulative left/right balances.
func (l *Ledger) LifetimeTotals(ctx context.Context, member MemberID) (LegTotals, error) {
	left, err := l.store.LegBalance(ctx, member, LegLeft)
	if err != nil {
		return LegTotals{}, err
	}
	right, err := l.store.LegBalance(ctx, member, LegRight)
	if err != nil {
		return LegTotals{}, err
	}
	return LegTotals{Left: left, Right: right}, nil
}

// VolumeBySource sums the member's points from one source within a period.
// The repeat-order calculator reads monthly RO volume through this.
func (l *Ledger) VolumeBySource(ctx context.Context, member MemberID, source Source, period Period) (Points, error) {
	entries, err := l.store.EntriesInPeriod(ctx, member, period)
	if err != nil {
		return 0, err
	}

	var total Points
	for _, e := range entries {
		if e.Source == source {
			total += e.Points
		}
	}
	return total, nil
}
