/*
calculators.go - Daily bonus calculators

PURPOSE:
  One deterministic function per bonus kind. Each calculator reads ledger
  and directory state for (member, date) and yields either a Pending bonus
  or nothing; re-evaluating against the same inputs yields the same result.

NO-RECORD RULE:
  A calculator that computes zero returns (nil, nil). Zero-amount bonus
  rows are never created.

SEE ALSO:
  - monthly.go: RepeatOrder and GlobalSharing (period-keyed)
  - engine:     The orchestrators invoking these per member
*/
package bonus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// CALCULATOR - Shared dependencies for all bonus kinds
// =============================================================================

type Calculator struct {
	Directory *network.Directory
	Ledger    *ledger.Ledger

	// PairingUnit is the global per-pair amount (not per-package).
	PairingUnit money.Money

	// ROPointValue converts repeat-order volume points to revenue.
	ROPointValue money.Money

	Splits SplitPolicy
}

// newBonus assembles a Pending record from a split.
func (c *Calculator) newBonus(member ledger.MemberID, kind Kind, s money.Split, date ledger.Date, runID string) *Bonus {
	return &Bonus{
		ID:            BonusID(uuid.NewString()),
		MemberID:      member,
		Kind:          kind,
		Amount:        s.Gross,
		EWalletAmount: s.EWallet,
		CashAmount:    s.Cash,
		Status:        StatusPending,
		BonusDate:     date,
		Period:        ledger.PeriodOf(date),
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
	}
}

// pairsOn returns the member's matched pairs for the date under their
// package cap.
func (c *Calculator) pairsOn(ctx context.Context, m *network.MemberProfile, date ledger.Date) (int, error) {
	params, err := c.Directory.Params(m.Tier)
	if err != nil {
		return 0, err
	}
	gained, err := c.Ledger.GainedOn(ctx, m.ID, date)
	if err != nil {
		return 0, fmt.Errorf("gained totals for %s: %w", m.ID, err)
	}
	return MatchPairs(gained, params.MaxPairsPerDay), nil
}

// =============================================================================
// PAIRING - pairs * global unit
// =============================================================================

func (c *Calculator) Pairing(ctx context.Context, m *network.MemberProfile, date ledger.Date, runID string) (*Bonus, error) {
	pairs, err := c.pairsOn(ctx, m, date)
	if err != nil {
		return nil, err
	}
	if pairs == 0 {
		return nil, nil
	}

	gross := c.PairingUnit.MulInt(int64(pairs))
	return c.newBonus(m.ID, KindPairing, c.Splits.Apply(KindPairing, gross), date, runID), nil
}

// =============================================================================
// MATCHING - percentage of direct downlines' same-day pairing total
// =============================================================================

func (c *Calculator) Matching(ctx context.Context, m *network.MemberProfile, date ledger.Date, runID string) (*Bonus, error) {
	params, err := c.Directory.Params(m.Tier)
	if err != nil {
		return nil, err
	}
	if params.MatchingPercent.IsZero() {
		return nil, nil
	}

	downlines, err := c.Directory.Members().DirectDownlines(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("downlines of %s: %w", m.ID, err)
	}

	var downlineGross money.Money
	for i := range downlines {
		d := &downlines[i]
		if !d.Active() {
			continue
		}
		pairs, err := c.pairsOn(ctx, d, date)
		if err != nil {
			// A downline with broken configuration must not sink the
			// upline's bonus; their contribution is simply absent.
			if IsSkip(err) {
				continue
			}
			return nil, err
		}
		downlineGross = downlineGross.Add(c.PairingUnit.MulInt(int64(pairs)))
	}

	gross := params.MatchingPercent.Of(downlineGross)
	if gross.IsZero() {
		return nil, nil
	}
	return c.newBonus(m.ID, KindMatching, c.Splits.Apply(KindMatching, gross), date, runID), nil
}

// =============================================================================
// LEVELING - flat per-tier amount, gated on same-day pairing activity
// =============================================================================

func (c *Calculator) Leveling(ctx context.Context, m *network.MemberProfile, date ledger.Date, runID string) (*Bonus, error) {
	params, err := c.Directory.Params(m.Tier)
	if err != nil {
		return nil, err
	}
	if params.LevelingAmount.IsZero() {
		return nil, nil
	}

	pairs, err := c.pairsOn(ctx, m, date)
	if err != nil {
		return nil, err
	}
	if pairs == 0 {
		return nil, nil
	}

	return c.newBonus(m.ID, KindLeveling, c.Splits.Apply(KindLeveling, params.LevelingAmount), date, runID), nil
}

// =============================================================================
// SPONSOR - registration-triggered matrix lookup
// =============================================================================

// Sponsor computes the registration bonus for a sponsor recruiting a new
// member. Triggered by the registration event, not by a run. The matrix is
// monotone in both tiers, so the award is effectively governed by the
// lower-tier side of the pairing.
func (c *Calculator) Sponsor(ctx context.Context, sponsor, joiner *network.MemberProfile) (*Bonus, error) {
	gross := c.Directory.SponsorMatrix().Lookup(sponsor.Tier, joiner.Tier)
	if gross.IsZero() {
		return nil, nil
	}
	date := ledger.Today()
	return c.newBonus(sponsor.ID, KindSponsor, c.Splits.Apply(KindSponsor, gross), date, ""), nil
}
