package memory

import (
	"context"
	"fmt"

	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// POINT LEDGER (ledger.Store interface)
// =============================================================================

func (s *Store) Append(_ context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{Member: e.MemberID, Date: e.Date.String(), Ref: e.ReferenceID}
	if e.ReferenceID != "" && s.entryRef[k] {
		return fmt.Errorf("%w: reference %s", ledger.ErrDuplicateEntry, e.ReferenceID)
	}
	s.entries[e.MemberID] = append(s.entries[e.MemberID], e)
	if e.ReferenceID != "" {
		s.entryRef[k] = true
	}
	return nil
}

func (s *Store) EntriesOn(_ context.Context, member ledger.MemberID, date ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range s.entries[member] {
		if e.Date.Equal(date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) EntriesInPeriod(_ context.Context, member ledger.MemberID, period ledger.Period) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range s.entries[member] {
		if period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) LegBalance(_ context.Context, member ledger.MemberID, leg ledger.Leg) (ledger.Points, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total ledger.Points
	for _, e := range s.entries[member] {
		if e.Leg == leg {
			total += e.Points
		}
	}
	return total, nil
}
