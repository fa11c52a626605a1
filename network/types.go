/*
Package network provides the member directory and package configuration:
who is in the binary tree, which package tier they hold, and the numeric
parameters each tier carries.

PURPOSE:
  The compensation engine treats this package as read-only configuration.
  Package tiers, the sponsor bonus matrix and the career ladder are business
  configuration resolved through the Directory, never hardcoded into the
  calculators.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier:          One of three ordered package tiers
  - PackageParams: The numeric parameters a tier carries
  - SponsorMatrix: The 3x3 registration bonus lookup table
  - MemberProfile: One network member with legs, sponsor and totals

SEE ALSO:
  - career.go:    Career ladder and level resolution
  - directory.go: The read-only lookup boundary the engine consumes
*/
package network

import (
	"time"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// PACKAGE TIERS
// =============================================================================

// Tier is an ordered package tier. Rank ordering drives the sponsor matrix
// monotonicity rule and tier upgrades.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Rank returns the tier's order (1 = lowest). Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	}
	return 0
}

func (t Tier) Valid() bool { return t.Rank() > 0 }

// Tiers lists all tiers in ascending rank order.
func Tiers() []Tier { return []Tier{TierBronze, TierSilver, TierGold} }

// PackageStatus gates participation in daily runs.
type PackageStatus string

const (
	PackageActive   PackageStatus = "active"
	PackageInactive PackageStatus = "inactive"
)

// =============================================================================
// PACKAGE PARAMETERS - Per-tier business configuration
// =============================================================================

// PackageParams are the numeric parameters one tier carries. All values are
// configuration, loaded at startup and read-only thereafter.
type PackageParams struct {
	Tier Tier

	// MaxPairsPerDay caps the pairing matcher for members on this tier.
	MaxPairsPerDay int

	// LevelingAmount is the flat daily leveling bonus for this tier.
	LevelingAmount money.Money

	// MatchingPercent is applied to direct downlines' same-day pairing
	// bonus total.
	MatchingPercent money.Percent

	// RepeatOrderPercent is applied to the member's own monthly
	// repeat-order volume.
	RepeatOrderPercent money.Percent
}

// =============================================================================
// SPONSOR MATRIX - Registration bonus lookup
// =============================================================================

// SponsorMatrix maps (sponsor tier, new member tier) to the registration
// bonus. The matrix must be monotone in both tiers: raising either tier
// never lowers the bonus.
type SponsorMatrix map[Tier]map[Tier]money.Money

// Lookup returns the bonus for a sponsor/new-member tier pairing.
func (m SponsorMatrix) Lookup(sponsor, joiner Tier) money.Money {
	row, ok := m[sponsor]
	if !ok {
		return 0
	}
	return row[joiner]
}

// Monotone verifies the matrix never pays less for a higher tier pairing.
func (m SponsorMatrix) Monotone() bool {
	tiers := Tiers()
	for i, s := range tiers {
		for j, n := range tiers {
			if i > 0 && m.Lookup(s, n) < m.Lookup(tiers[i-1], n) {
				return false
			}
			if j > 0 && m.Lookup(s, n) < m.Lookup(s, tiers[j-1]) {
				return false
			}
		}
	}
	return true
}

// =============================================================================
// MEMBER PROFILE
// =============================================================================

// MemberProfile is one node of the binary network tree. Created at
// registration, updated by ledger postings and completed runs, deactivated
// rather than deleted.
type MemberProfile struct {
	ID     ledger.MemberID
	UserID string
	Name   string

	Tier          Tier
	PackageStatus PackageStatus

	// SponsorID and Position place this member under their recruiter.
	SponsorID ledger.MemberID
	Position  ledger.Leg

	// Cumulative pairing-point totals per leg (career ladder input).
	PairingTotals ledger.LegTotals

	// Cumulative reward-point totals per leg (milestone bookkeeping).
	RewardTotals ledger.LegTotals

	CareerLevel string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the member participates in daily runs.
func (m *MemberProfile) Active() bool { return m.PackageStatus == PackageActive }
