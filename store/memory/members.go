package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// MEMBER DIRECTORY (network.MemberStore interface)
// =============================================================================

func (s *Store) Member(_ context.Context, id ledger.MemberID) (*network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListActive(_ context.Context, offset, limit int) ([]network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []network.MemberProfile
	for _, m := range s.members {
		if m.Active() {
			active = append(active, *m)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	if offset >= len(active) {
		return nil, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], nil
}

func (s *Store) DirectDownlines(_ context.Context, id ledger.MemberID) ([]network.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []network.MemberProfile
	for _, m := range s.members {
		if m.SponsorID == id {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Save(_ context.Context, m network.MemberProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.UpdatedAt = time.Now()
	cp := m
	s.members[m.ID] = &cp
	return nil
}

func (s *Store) UpdateCareerLevel(_ context.Context, id ledger.MemberID, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	m.CareerLevel = level
	m.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AddPairingPoints(_ context.Context, id ledger.MemberID, leg ledger.Leg, points ledger.Points) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("%w: %s", network.ErrMemberNotFound, id)
	}
	m.PairingTotals = m.PairingTotals.Add(leg, points)
	m.UpdatedAt = time.Now()
	return nil
}
