package bonus

import "github.com/vertex/comp-engine/ledger"

// =============================================================================
// PAIRING MATCHER
// =============================================================================

// MatchPairs converts a member's same-day left/right gained totals into a
// matched-pair count, capped by the member's package rule:
//
//	pairs = min(leftGained, rightGained, maxPairsPerDay)
//
// A zero or negative result means no pairing bonus for the date. That is
// the normal case for most of the population, not an error.
//
// The inputs are the points gained FOR the run's target date, never
// lifetime totals. Pairing rewards same-day balanced growth, and the cap
// keeps one day's burst from producing unbounded payout.
func MatchPairs(gained ledger.LegTotals, maxPairsPerDay int) int {
	pairs := int(gained.Min())
	if maxPairsPerDay < pairs {
		pairs = maxPairsPerDay
	}
	if pairs < 0 {
		return 0
	}
	return pairs
}
