/*
Package wallet provides the member wallet: the money-of-record balance and
its append-only transaction log, plus the settlement state machine that is
the only writer of either.

PURPOSE:
  A computed bonus becomes spendable money exactly once, when an admin
  approves it. The wallet balance always equals the sum of its transaction
  log; the two are mutated in one atomic unit and can never diverge.

KEY CONCEPTS IN THIS FILE (wallet.go):
  - Wallet:      One per member, running balance
  - Transaction: Append-only signed entry referencing its causing bonus
  - Store:       Read access plus the transactional settlement scope

ONE-CREDIT GUARANTEE:
  A bonus may produce at most one credit transaction, ever. Two lines of
  defense: the status compare-and-set in the settlement service, and a
  storage-level unique constraint on (bonus, transaction kind) that catches
  a race even if the status check is bypassed.

SEE ALSO:
  - settlement.go: The Pending -> Approved/Rejected state machine
*/
package wallet

import (
	"context"
	"time"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// WALLET AND TRANSACTIONS
// =============================================================================

type Wallet struct {
	MemberID  ledger.MemberID
	Balance   money.Money
	UpdatedAt time.Time
}

type TxKind string

const (
	TxCredit TxKind = "credit"
	TxDebit  TxKind = "debit"
)

type TransactionID string

// Transaction is one append-only wallet log entry. Amount is signed:
// positive for credits, negative for debits. BonusID references the
// causing bonus for credits produced by settlement.
type Transaction struct {
	ID       TransactionID
	MemberID ledger.MemberID
	Kind     TxKind
	Amount   money.Money
	BonusID  bonus.BonusID
	Note     string

	CreatedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store reads wallet state and opens transactional settlement scopes.
type Store interface {
	Wallet(ctx context.Context, member ledger.MemberID) (*Wallet, error)

	Transactions(ctx context.Context, member ledger.MemberID, limit int) ([]Transaction, error)

	// WithTx runs fn inside one storage transaction. Everything fn does
	// through SettlementOps commits or rolls back together.
	WithTx(ctx context.Context, fn func(SettlementOps) error) error
}

// SettlementOps are the mutations available inside a settlement scope.
// The settlement service is their only caller.
type SettlementOps interface {
	// BonusForUpdate loads a bonus for transition. Implementations should
	// lock or otherwise serialize the row for the scope's duration.
	BonusForUpdate(ctx context.Context, id bonus.BonusID) (*bonus.Bonus, error)

	// TransitionBonus moves a bonus from one status to another as a
	// compare-and-set. Returns bonus.ErrAlreadyProcessed when the row is
	// no longer in the expected status.
	TransitionBonus(ctx context.Context, id bonus.BonusID, from, to bonus.Status, decidedBy, reason string) error

	// InsertTransaction appends a wallet log entry. A second credit for
	// the same bonus violates the (bonus, kind) uniqueness constraint and
	// returns bonus.ErrAlreadyProcessed.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// AdjustBalance applies a signed delta to the member's balance,
	// creating the wallet row if needed.
	AdjustBalance(ctx context.Context, member ledger.MemberID, delta money.Money) error
}
