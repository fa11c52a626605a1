package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// RUN STORE (engine.RunStore interface)
// =============================================================================

func (s *Store) CreateDaily(_ context.Context, run engine.DailyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := run.Date.String()
	if _, exists := s.dailyRuns[key]; exists {
		return fmt.Errorf("%w: date %s", bonus.ErrAlreadyRun, run.Date)
	}
	cp := run
	s.dailyRuns[key] = &cp
	return nil
}

func (s *Store) UpdateDaily(_ context.Context, run engine.DailyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := run
	s.dailyRuns[run.Date.String()] = &cp
	return nil
}

func (s *Store) GetDailyByDate(_ context.Context, date ledger.Date) (*engine.DailyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.dailyRuns[date.String()]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (s *Store) ListDaily(_ context.Context, limit int) ([]engine.DailyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.DailyRun
	for _, run := range s.dailyRuns {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ResetDaily(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.dailyRuns {
		if run.ID != id {
			continue
		}
		if run.Status == engine.RunCompleted {
			return fmt.Errorf("%w: run %s", bonus.ErrAlreadyRun, id)
		}
		run.Status = engine.RunRunning
		run.CompletedAt = nil
		run.Error = ""
		return nil
	}
	return fmt.Errorf("%w: run %s", bonus.ErrAlreadyRun, id)
}

func (s *Store) CreateMonthly(_ context.Context, run engine.MonthlyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthlyKey{Year: run.Period.Year, Month: int(run.Period.Month), Kind: run.Kind}
	if _, exists := s.monthlyRuns[key]; exists {
		return fmt.Errorf("%w: period %s kind %s", bonus.ErrAlreadyRun, run.Period, run.Kind)
	}
	cp := run
	s.monthlyRuns[key] = &cp
	return nil
}

func (s *Store) UpdateMonthly(_ context.Context, run engine.MonthlyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthlyKey{Year: run.Period.Year, Month: int(run.Period.Month), Kind: run.Kind}
	cp := run
	s.monthlyRuns[key] = &cp
	return nil
}

func (s *Store) GetMonthly(_ context.Context, period ledger.Period, kind engine.MonthlyKind) (*engine.MonthlyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.monthlyRuns[monthlyKey{Year: period.Year, Month: int(period.Month), Kind: kind}]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (s *Store) ListMonthly(_ context.Context, limit int) ([]engine.MonthlyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.MonthlyRun
	for _, run := range s.monthlyRuns {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period.Year != out[j].Period.Year {
			return out[i].Period.Year > out[j].Period.Year
		}
		return out[i].Period.Month > out[j].Period.Month
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
