/*
Package bonus provides the bonus record, the pairing matcher and the
per-kind bonus calculators.

PURPOSE:
  A Bonus is one (member, kind, period) award computed by a run. It is
  created Pending, split into an e-wallet and a cash portion, and moves
  through the settlement state machine exactly once.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind:   Which compensation plan component produced the award
  - Status: Pending -> Approved -> Paid, or Pending -> Rejected
  - Bonus:  The award record itself

INVARIANTS:
  1. Amount == EWalletAmount + CashAmount, always.
  2. Status transitions are monotone; Rejected and Paid are terminal.
  3. Bonus rows are never deleted.

SEE ALSO:
  - matcher.go:     Leg matching (pairs from same-day gained totals)
  - calculators.go: Daily calculators (Pairing, Matching, Leveling, Sponsor)
  - monthly.go:     Monthly calculators (RepeatOrder, GlobalSharing)
  - wallet:         The settlement state machine consuming these records
*/
package bonus

import (
	"time"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// KIND AND STATUS
// =============================================================================

type Kind string

const (
	KindSponsor       Kind = "sponsor"
	KindPairing       Kind = "pairing"
	KindMatching      Kind = "matching"
	KindLeveling      Kind = "leveling"
	KindRepeatOrder   Kind = "repeat_order"
	KindGlobalSharing Kind = "global_sharing"
)

// DailyKinds are computed by the daily runner.
func DailyKinds() []Kind { return []Kind{KindPairing, KindMatching, KindLeveling} }

// MonthlyKinds are computed by the monthly runners.
func MonthlyKinds() []Kind { return []Kind{KindRepeatOrder, KindGlobalSharing} }

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusPaid || s == StatusRejected }

// =============================================================================
// BONUS RECORD
// =============================================================================

type BonusID string

type Bonus struct {
	ID       BonusID
	MemberID ledger.MemberID
	Kind     Kind

	Amount        money.Money
	EWalletAmount money.Money
	CashAmount    money.Money

	Status Status

	// BonusDate is the calendar day the award applies to (daily kinds) or
	// the first day of the period (monthly kinds).
	BonusDate ledger.Date
	Period    ledger.Period

	// RunID references the producing run; empty for event-triggered awards
	// (sponsor bonuses at registration).
	RunID string

	// Settlement audit trail, written by the state machine only.
	DecidedBy    string
	DecidedAt    *time.Time
	RejectReason string

	CreatedAt time.Time
}

// Consistent reports whether the split invariant holds.
func (b *Bonus) Consistent() bool {
	return b.Amount == b.EWalletAmount+b.CashAmount
}

// =============================================================================
// SPLIT POLICY - Per-kind e-wallet percentages
// =============================================================================

// SplitPolicy maps each bonus kind to its e-wallet percentage. Kinds
// without an explicit entry use the default 20% e-wallet / 80% cash rule.
type SplitPolicy map[Kind]money.Percent

// EWalletPercent returns the e-wallet percentage for a kind.
func (p SplitPolicy) EWalletPercent(kind Kind) money.Percent {
	if pct, ok := p[kind]; ok {
		return pct
	}
	return money.NewPercent(20)
}

// Apply splits a gross amount for a kind.
func (p SplitPolicy) Apply(kind Kind, gross money.Money) money.Split {
	return money.SplitByPercent(gross, p.EWalletPercent(kind))
}
