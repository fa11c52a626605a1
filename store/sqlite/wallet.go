package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/wallet"
)

// =============================================================================
// WALLET STORE (wallet.Store interface)
// =============================================================================

// Wallet returns the member's wallet, a zero-balance wallet when the member
// has never been credited.
func (s *Store) Wallet(ctx context.Context, member ledger.MemberID) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		w         wallet.Wallet
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, balance, updated_at FROM wallets WHERE member_id = ?`,
		string(member)).Scan(&w.MemberID, &w.Balance, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &wallet.Wallet{MemberID: member}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

// Transactions returns the member's wallet log, newest first.
func (s *Store) Transactions(ctx context.Context, member ledger.MemberID, limit int) ([]wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, kind, amount, bonus_id, note, created_at
		FROM wallet_transactions
		WHERE member_id = ?
		ORDER BY created_at DESC LIMIT ?`, string(member), limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []wallet.Transaction
	for rows.Next() {
		var (
			tx        wallet.Transaction
			createdAt string
		)
		err := rows.Scan(&tx.ID, &tx.MemberID, &tx.Kind, &tx.Amount,
			&tx.BonusID, &tx.Note, &createdAt)
		if err != nil {
			return nil, err
		}
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// WithTx runs fn inside one database transaction. The settlement mutations
// fn performs commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(wallet.SettlementOps) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	if err := fn(settlementOps{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// =============================================================================
// SETTLEMENT SCOPE
// =============================================================================

// settlementOps implements wallet.SettlementOps over one open transaction.
// The store's write lock is held for the scope's whole duration, so the
// compare-and-set below is belt and suspenders under a single process.
type settlementOps struct {
	tx *sql.Tx
}

func (o settlementOps) BonusForUpdate(ctx context.Context, id bonus.BonusID) (*bonus.Bonus, error) {
	return getBonus(ctx, o.tx, id)
}

func (o settlementOps) TransitionBonus(ctx context.Context, id bonus.BonusID, from, to bonus.Status, decidedBy, reason string) error {
	res, err := o.tx.ExecContext(ctx, `
		UPDATE bonuses
		SET status = ?, decided_by = ?, decided_at = ?, reject_reason = ?
		WHERE id = ? AND status = ?`,
		string(to), decidedBy, formatTime(time.Now()), reason,
		string(id), string(from))
	if err != nil {
		return fmt.Errorf("transition bonus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: bonus %s not %s", bonus.ErrAlreadyProcessed, id, from)
	}
	return nil
}

func (o settlementOps) InsertTransaction(ctx context.Context, tx wallet.Transaction) error {
	_, err := o.tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, member_id, kind, amount, bonus_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.MemberID), string(tx.Kind), int64(tx.Amount),
		string(tx.BonusID), tx.Note, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bonus %s already credited", bonus.ErrAlreadyProcessed, tx.BonusID)
		}
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

func (o settlementOps) AdjustBalance(ctx context.Context, member ledger.MemberID, delta money.Money) error {
	_, err := o.tx.ExecContext(ctx, `
		INSERT INTO wallets (member_id, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		string(member), int64(delta), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("adjust wallet balance: %w", err)
	}
	return nil
}
