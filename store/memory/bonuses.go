package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// BONUS STORE (bonus.Store interface)
// =============================================================================

func (s *Store) Insert(_ context.Context, b *bonus.Bonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBonusLocked(b)
}

func (s *Store) insertBonusLocked(b *bonus.Bonus) error {
	if _, exists := s.bonuses[b.ID]; exists {
		return fmt.Errorf("%w: id %s", bonus.ErrDuplicateAward, b.ID)
	}
	k := awardKey{RunID: b.RunID, Member: b.MemberID, Kind: b.Kind, Date: b.BonusDate.String()}
	if b.RunID != "" && s.awardKey[k] {
		return fmt.Errorf("%w: %s %s on %s", bonus.ErrDuplicateAward, b.MemberID, b.Kind, b.BonusDate)
	}
	cp := *b
	s.bonuses[b.ID] = &cp
	if b.RunID != "" {
		s.awardKey[k] = true
	}
	return nil
}

func (s *Store) Get(_ context.Context, id bonus.BonusID) (*bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBonusLocked(id)
}

func (s *Store) getBonusLocked(id bonus.BonusID) (*bonus.Bonus, error) {
	b, ok := s.bonuses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bonus.ErrBonusNotFound, id)
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListByStatus(_ context.Context, status bonus.Status, limit int) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.collect(func(b *bonus.Bonus) bool { return b.Status == status })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByRun(_ context.Context, runID string) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *bonus.Bonus) bool { return b.RunID == runID }), nil
}

func (s *Store) ListByMember(_ context.Context, member ledger.MemberID, limit int) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.collect(func(b *bonus.Bonus) bool { return b.MemberID == member })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByPeriod(_ context.Context, period ledger.Period, kind bonus.Kind) ([]bonus.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *bonus.Bonus) bool {
		return b.Period == period && b.Kind == kind
	}), nil
}

func (s *Store) collect(keep func(*bonus.Bonus) bool) []bonus.Bonus {
	var out []bonus.Bonus
	for _, b := range s.bonuses {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
