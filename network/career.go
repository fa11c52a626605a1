package network

import (
	"sort"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// CAREER LADDER
// =============================================================================

// CareerLevel is one rung of the career ladder: a required pairing-point
// threshold on each leg and the global-sharing percentage the level earns.
type CareerLevel struct {
	Name         string
	RequiredPP   ledger.Points
	SharePercent money.Percent
}

// Ladder is the ordered career ladder. Levels are kept sorted ascending by
// RequiredPP; the base level must have RequiredPP == 0 so every member
// resolves to something.
type Ladder []CareerLevel

// NewLadder sorts the levels and returns the ladder.
func NewLadder(levels []CareerLevel) Ladder {
	sorted := make([]CareerLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RequiredPP < sorted[j].RequiredPP })
	return Ladder(sorted)
}

// Resolve returns the highest level whose threshold is at or below the
// member's effective total.
//
// The effective total is min(leftTotal, rightTotal): the smaller leg gates
// the level. A member with 100,000 points on one leg and 0 on the other
// stays at the base level. This asymmetry is deliberate; the ladder rewards
// balanced growth on both legs.
func (l Ladder) Resolve(totals ledger.LegTotals) CareerLevel {
	effective := totals.Min()

	var current CareerLevel
	for _, level := range l {
		if level.RequiredPP > effective {
			break
		}
		current = level
	}
	return current
}

// Base returns the zero-threshold level every member starts at.
func (l Ladder) Base() CareerLevel {
	if len(l) == 0 {
		return CareerLevel{}
	}
	return l[0]
}

// Level returns the ladder entry with the given name.
func (l Ladder) Level(name string) (CareerLevel, bool) {
	for _, level := range l {
		if level.Name == name {
			return level, true
		}
	}
	return CareerLevel{}, false
}
