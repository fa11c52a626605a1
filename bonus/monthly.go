/*
monthly.go - Monthly bonus calculators (RepeatOrder, GlobalSharing)

PURPOSE:
  Period-keyed calculators run once per (month, year) after the month's
  repeat-order revenue is final. Mid-month recomputation is rejected by run
  idempotency in the orchestrator, not here; these functions stay pure.

GLOBAL SHARING:
  share = (levelPercent * nationalRoRevenue) / countOfMembersAtLevel
  The division truncates to integer minor units; the undistributed
  remainder stays in the pool.
*/
package bonus

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// REPEAT ORDER - percentage of the member's own monthly RO revenue
// =============================================================================

func (c *Calculator) RepeatOrder(ctx context.Context, m *network.MemberProfile, period ledger.Period, runID string) (*Bonus, error) {
	params, err := c.Directory.Params(m.Tier)
	if err != nil {
		return nil, err
	}
	if params.RepeatOrderPercent.IsZero() {
		return nil, nil
	}

	volume, err := c.Ledger.VolumeBySource(ctx, m.ID, ledger.SourceRepeatOrder, period)
	if err != nil {
		return nil, fmt.Errorf("repeat-order volume for %s: %w", m.ID, err)
	}
	if volume == 0 {
		return nil, nil
	}

	revenue := c.ROPointValue.MulInt(int64(volume))
	gross := params.RepeatOrderPercent.Of(revenue)
	if gross.IsZero() {
		return nil, nil
	}

	b := c.newBonus(m.ID, KindRepeatOrder, c.Splits.Apply(KindRepeatOrder, gross), period.Start(), runID)
	b.Period = period
	return b, nil
}

// NationalRORevenue sums repeat-order revenue over the whole member
// population for a period. This is the global-sharing pool.
func (c *Calculator) NationalRORevenue(ctx context.Context, members []network.MemberProfile, period ledger.Period) (money.Money, error) {
	var total money.Money
	for i := range members {
		volume, err := c.Ledger.VolumeBySource(ctx, members[i].ID, ledger.SourceRepeatOrder, period)
		if err != nil {
			return 0, err
		}
		total = total.Add(c.ROPointValue.MulInt(int64(volume)))
	}
	return total, nil
}

// =============================================================================
// GLOBAL SHARING - level percentage of the national pool, split per head
// =============================================================================

// GlobalSharing computes one member's share of the period's pool.
// membersAtLevel is the count of members currently holding the same career
// level; the caller resolves it once per level per run.
func (c *Calculator) GlobalSharing(ctx context.Context, m *network.MemberProfile, period ledger.Period, pool money.Money, membersAtLevel int, runID string) (*Bonus, error) {
	if membersAtLevel <= 0 || pool.IsZero() {
		return nil, nil
	}

	level, ok := c.Directory.Ladder().Level(m.CareerLevel)
	if !ok || level.SharePercent.IsZero() {
		return nil, nil
	}

	levelPool := level.SharePercent.Of(pool)
	gross := money.Money(decimal.NewFromInt(int64(levelPool)).
		Div(decimal.NewFromInt(int64(membersAtLevel))).IntPart())
	if gross.IsZero() {
		return nil, nil
	}

	b := c.newBonus(m.ID, KindGlobalSharing, c.Splits.Apply(KindGlobalSharing, gross), period.Start(), runID)
	b.Period = period
	return b, nil
}
