package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/wallet"
)

// =============================================================================
// WALLET STORE (wallet.Store interface)
// =============================================================================

func (s *Store) Wallet(_ context.Context, member ledger.MemberID) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[member]
	if !ok {
		return &wallet.Wallet{MemberID: member}, nil
	}
	cp := *w
	return &cp, nil
}

func (s *Store) Transactions(_ context.Context, member ledger.MemberID, limit int) ([]wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]wallet.Transaction(nil), s.walletTx[member]...)
	sort.Slice(out, func(i, j int) bool { return out[j].CreatedAt.Before(out[i].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx simulates a storage transaction with a snapshot of settlement
// state, restored when fn fails.
func (s *Store) WithTx(_ context.Context, fn func(wallet.SettlementOps) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.settlementSnapshot()
	if err := fn(settlementOps{store: s}); err != nil {
		s.restoreSettlement(snap)
		return err
	}
	return nil
}

type settlementSnapshot struct {
	bonuses   map[bonus.BonusID]*bonus.Bonus
	wallets   map[ledger.MemberID]*wallet.Wallet
	walletTx  map[ledger.MemberID][]wallet.Transaction
	creditKey map[creditKey]bool
}

func (s *Store) settlementSnapshot() settlementSnapshot {
	snap := settlementSnapshot{
		bonuses:   make(map[bonus.BonusID]*bonus.Bonus, len(s.bonuses)),
		wallets:   make(map[ledger.MemberID]*wallet.Wallet, len(s.wallets)),
		walletTx:  make(map[ledger.MemberID][]wallet.Transaction, len(s.walletTx)),
		creditKey: make(map[creditKey]bool, len(s.creditKey)),
	}
	for id, b := range s.bonuses {
		cp := *b
		snap.bonuses[id] = &cp
	}
	for id, w := range s.wallets {
		cp := *w
		snap.wallets[id] = &cp
	}
	for id, txs := range s.walletTx {
		snap.walletTx[id] = append([]wallet.Transaction(nil), txs...)
	}
	for k, v := range s.creditKey {
		snap.creditKey[k] = v
	}
	return snap
}

func (s *Store) restoreSettlement(snap settlementSnapshot) {
	s.bonuses = snap.bonuses
	s.wallets = snap.wallets
	s.walletTx = snap.walletTx
	s.creditKey = snap.creditKey
}

// =============================================================================
// SETTLEMENT SCOPE
// =============================================================================

// settlementOps mutates the store directly while WithTx holds the write
// lock. Rollback is the caller's snapshot restore.
type settlementOps struct {
	store *Store
}

func (o settlementOps) BonusForUpdate(_ context.Context, id bonus.BonusID) (*bonus.Bonus, error) {
	return o.store.getBonusLocked(id)
}

func (o settlementOps) TransitionBonus(_ context.Context, id bonus.BonusID, from, to bonus.Status, decidedBy, reason string) error {
	b, ok := o.store.bonuses[id]
	if !ok {
		return fmt.Errorf("%w: %s", bonus.ErrBonusNotFound, id)
	}
	if b.Status != from {
		return fmt.Errorf("%w: bonus %s not %s", bonus.ErrAlreadyProcessed, id, from)
	}
	now := time.Now()
	b.Status = to
	b.DecidedBy = decidedBy
	b.DecidedAt = &now
	b.RejectReason = reason
	return nil
}

func (o settlementOps) InsertTransaction(_ context.Context, tx wallet.Transaction) error {
	k := creditKey{Bonus: tx.BonusID, Kind: tx.Kind}
	if tx.BonusID != "" && o.store.creditKey[k] {
		return fmt.Errorf("%w: bonus %s already credited", bonus.ErrAlreadyProcessed, tx.BonusID)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	o.store.walletTx[tx.MemberID] = append(o.store.walletTx[tx.MemberID], tx)
	if tx.BonusID != "" {
		o.store.creditKey[k] = true
	}
	return nil
}

func (o settlementOps) AdjustBalance(_ context.Context, member ledger.MemberID, delta money.Money) error {
	w, ok := o.store.wallets[member]
	if !ok {
		w = &wallet.Wallet{MemberID: member}
		o.store.wallets[member] = w
	}
	w.Balance = w.Balance.Add(delta)
	w.UpdatedAt = time.Now()
	return nil
}
