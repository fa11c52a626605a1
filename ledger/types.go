/*
Package ledger provides the pairing-point ledger: the append-only record of
point credits per member, per leg, per calendar day.

PURPOSE:
  Every unit of network volume (a registration under a leg, a repeat order,
  upline overflow) lands here as an immutable Entry. Daily pairing runs read
  the per-day slice of this ledger; career levels read the lifetime totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points: A pairing-point quantity (integer, never fractional)
  - Leg:    One of the two downstream branches (left/right)
  - Entry:  An immutable ledger row with balance-before/after snapshots
  - LegTotals: Left/right aggregate used by the pairing matcher

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified or deleted
  2. Summation: A (member, leg, date) may have many entries; readers SUM them,
     never diff them against a running counter. This tolerates concurrent
     appends from independent writers.
  3. Day keying: Daily runs consume same-day gained totals, not lifetime
     totals, which makes a run replay-safe against a per-day ledger slice.

SEE ALSO:
  - ledger.go: The Ledger interface and store contract
  - date.go:   Date and Period keys
*/
package ledger

import "time"

// =============================================================================
// POINTS AND LEGS
// =============================================================================

// Points is a pairing-point quantity. Points are integral business volume
// units, not money.
type Points int64

// Leg identifies one of the two downstream branches under a member.
type Leg string

const (
	LegLeft  Leg = "left"
	LegRight Leg = "right"
)

// Valid reports whether l is a known leg.
func (l Leg) Valid() bool { return l == LegLeft || l == LegRight }

// MemberID identifies a network member.
type MemberID string

// =============================================================================
// SOURCE - What network activity generated the points
// =============================================================================

type Source string

const (
	SourceRegistration Source = "registration"
	SourceRepeatOrder  Source = "repeat_order"
	SourceOverflow     Source = "overflow"
	SourceAdjustment   Source = "adjustment"
)

// =============================================================================
// ENTRY - One immutable ledger row
// =============================================================================

type EntryID string

// Entry records one point credit. BalanceBefore/BalanceAfter snapshot the
// leg's cumulative total around this credit for audit display; correctness
// never depends on them (readers sum Points).
type Entry struct {
	ID            EntryID
	MemberID      MemberID
	Leg           Leg
	Points        Points
	BalanceBefore Points
	BalanceAfter  Points
	Date          Date
	Source        Source
	ReferenceID   string
	CreatedAt     time.Time
}

// =============================================================================
// LEG TOTALS - Aggregate view consumed by the matcher and career resolver
// =============================================================================

type LegTotals struct {
	Left  Points
	Right Points
}

// Min returns the smaller leg total, the effective value for career
// resolution and the natural bound on matched pairs.
func (t LegTotals) Min() Points {
	if t.Left < t.Right {
		return t.Left
	}
	return t.Right
}

func (t LegTotals) Add(leg Leg, p Points) LegTotals {
	switch leg {
	case LegLeft:
		t.Left += p
	case LegRight:
		t.Right += p
	}
	return t
}
