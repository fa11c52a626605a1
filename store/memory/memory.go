/*
Package memory provides an in-memory implementation of every store
interface, for tests and local development.

PURPOSE:
  One Store satisfies ledger.Store, network.MemberStore, bonus.Store,
  engine.RunStore and wallet.Store with the same uniqueness guarantees the
  SQLite store enforces through indexes, so engine and settlement tests run
  against the real error contracts without a database file.

SEE ALSO:
  - store/sqlite: The durable implementation with the constraint schema
*/
package memory

import (
	"sync"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/wallet"
)

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	mu sync.RWMutex

	entries  map[ledger.MemberID][]ledger.Entry
	entryRef map[entryKey]bool

	members map[ledger.MemberID]*network.MemberProfile

	bonuses  map[bonus.BonusID]*bonus.Bonus
	awardKey map[awardKey]bool

	dailyRuns   map[string]*engine.DailyRun // keyed by date string
	monthlyRuns map[monthlyKey]*engine.MonthlyRun

	wallets   map[ledger.MemberID]*wallet.Wallet
	walletTx  map[ledger.MemberID][]wallet.Transaction
	creditKey map[creditKey]bool
}

type entryKey struct {
	Member ledger.MemberID
	Date   string
	Ref    string
}

type awardKey struct {
	RunID  string
	Member ledger.MemberID
	Kind   bonus.Kind
	Date   string
}

type monthlyKey struct {
	Year  int
	Month int
	Kind  engine.MonthlyKind
}

type creditKey struct {
	Bonus bonus.BonusID
	Kind  wallet.TxKind
}

func New() *Store {
	return &Store{
		entries:     make(map[ledger.MemberID][]ledger.Entry),
		entryRef:    make(map[entryKey]bool),
		members:     make(map[ledger.MemberID]*network.MemberProfile),
		bonuses:     make(map[bonus.BonusID]*bonus.Bonus),
		awardKey:    make(map[awardKey]bool),
		dailyRuns:   make(map[string]*engine.DailyRun),
		monthlyRuns: make(map[monthlyKey]*engine.MonthlyRun),
		wallets:     make(map[ledger.MemberID]*wallet.Wallet),
		walletTx:    make(map[ledger.MemberID][]wallet.Transaction),
		creditKey:   make(map[creditKey]bool),
	}
}
