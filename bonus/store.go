package bonus

import (
	"context"

	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// STORE - Bonus record persistence
// =============================================================================

// Store persists bonus records. Rows are inserted Pending by the
// orchestrators and mutated only by the settlement state machine; they are
// never deleted.
type Store interface {
	Insert(ctx context.Context, b *Bonus) error

	Get(ctx context.Context, id BonusID) (*Bonus, error)

	ListByStatus(ctx context.Context, status Status, limit int) ([]Bonus, error)

	// ListByRun returns every bonus produced by one run, for inspection of
	// orphaned records after a failed run.
	ListByRun(ctx context.Context, runID string) ([]Bonus, error)

	ListByMember(ctx context.Context, member ledger.MemberID, limit int) ([]Bonus, error)

	// ListByPeriod returns bonuses of one kind for a settlement period.
	ListByPeriod(ctx context.Context, period ledger.Period, kind Kind) ([]Bonus, error)
}
