/*
settlement.go - The bonus approval state machine

PURPOSE:
  Moves a computed bonus out of Pending exactly once:

    Pending -> Approved   (credits the e-wallet portion, one transaction)
    Pending -> Rejected   (no wallet mutation)
    Approved -> Paid      (payout reconciliation, no wallet mutation)

  Rejected and Paid are terminal.

CONCURRENCY:
  Approve/reject arrive from human admin actions over HTTP and can race
  (double-click, two admins). The status check, the status mutation and
  the wallet credit are applied as one atomic storage transaction scoped
  to the single bonus row. The (bonus, kind) uniqueness constraint on the
  transaction log is the second line of defense: even a bypassed status
  check cannot credit twice.

  The cash portion is paid through a separate out-of-band mechanism and
  never touches the wallet here.
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
)

// =============================================================================
// SETTLEMENT SERVICE
// =============================================================================

type SettlementService struct {
	Store Store
	Log   *zap.Logger
}

func NewSettlementService(store Store, log *zap.Logger) *SettlementService {
	return &SettlementService{Store: store, Log: log}
}

// Approve transitions a pending bonus to Approved and credits the wallet
// with the e-wallet portion, exactly once. A non-pending bonus yields
// ErrAlreadyProcessed and no wallet mutation.
func (s *SettlementService) Approve(ctx context.Context, id bonus.BonusID, adminID string) (*bonus.Bonus, error) {
	var approved *bonus.Bonus

	err := s.Store.WithTx(ctx, func(ops SettlementOps) error {
		b, err := ops.BonusForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != bonus.StatusPending {
			return &bonus.AlreadyProcessedError{BonusID: id, Status: b.Status}
		}

		if err := ops.TransitionBonus(ctx, id, bonus.StatusPending, bonus.StatusApproved, adminID, ""); err != nil {
			return err
		}

		if err := ops.InsertTransaction(ctx, Transaction{
			ID:        TransactionID(uuid.NewString()),
			MemberID:  b.MemberID,
			Kind:      TxCredit,
			Amount:    b.EWalletAmount,
			BonusID:   b.ID,
			Note:      fmt.Sprintf("%s bonus %s", b.Kind, b.BonusDate),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		if err := ops.AdjustBalance(ctx, b.MemberID, b.EWalletAmount); err != nil {
			return err
		}

		now := time.Now().UTC()
		b.Status = bonus.StatusApproved
		b.DecidedBy = adminID
		b.DecidedAt = &now
		approved = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("bonus approved",
		zap.String("bonus_id", string(id)),
		zap.String("member_id", string(approved.MemberID)),
		zap.Int64("ewallet_amount", int64(approved.EWalletAmount)),
		zap.String("admin", adminID))
	return approved, nil
}

// Reject transitions a pending bonus to Rejected. The wallet is never
// touched.
func (s *SettlementService) Reject(ctx context.Context, id bonus.BonusID, adminID, reason string) (*bonus.Bonus, error) {
	var rejected *bonus.Bonus

	err := s.Store.WithTx(ctx, func(ops SettlementOps) error {
		b, err := ops.BonusForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != bonus.StatusPending {
			return &bonus.AlreadyProcessedError{BonusID: id, Status: b.Status}
		}

		if err := ops.TransitionBonus(ctx, id, bonus.StatusPending, bonus.StatusRejected, adminID, reason); err != nil {
			return err
		}

		now := time.Now().UTC()
		b.Status = bonus.StatusRejected
		b.DecidedBy = adminID
		b.DecidedAt = &now
		b.RejectReason = reason
		rejected = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("bonus rejected",
		zap.String("bonus_id", string(id)),
		zap.String("member_id", string(rejected.MemberID)),
		zap.String("admin", adminID),
		zap.String("reason", reason))
	return rejected, nil
}

// MarkPaid records payout reconciliation of an approved bonus. Terminal;
// no wallet mutation (the cash portion is settled out of band).
func (s *SettlementService) MarkPaid(ctx context.Context, id bonus.BonusID, adminID string) (*bonus.Bonus, error) {
	var paid *bonus.Bonus

	err := s.Store.WithTx(ctx, func(ops SettlementOps) error {
		b, err := ops.BonusForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != bonus.StatusApproved {
			return &bonus.AlreadyProcessedError{BonusID: id, Status: b.Status}
		}

		if err := ops.TransitionBonus(ctx, id, bonus.StatusApproved, bonus.StatusPaid, adminID, ""); err != nil {
			return err
		}

		b.Status = bonus.StatusPaid
		paid = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("bonus marked paid", zap.String("bonus_id", string(id)), zap.String("admin", adminID))
	return paid, nil
}
