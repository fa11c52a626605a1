/*
directory.go - The read-only lookup boundary the engine consumes

PURPOSE:
  The Directory answers three questions for the compensation engine:
  which package parameters govern a member, who sponsored them, and which
  leg they occupy. It combines the static business configuration (tier
  parameters, sponsor matrix, career ladder) with the member store.

CONTRACT:
  The engine never mutates package records through this boundary. A member
  whose tier is missing from configuration yields ErrConfigurationMissing;
  batch runs skip such members with a warning instead of aborting.
*/
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConfigurationMissing is returned when a member's package tier has
	// no parameters in the directory. The member is skipped, not fatal.
	ErrConfigurationMissing = errors.New("package configuration missing")

	// ErrMemberNotFound is returned for an unknown member id.
	ErrMemberNotFound = errors.New("member not found")
)

// =============================================================================
// MEMBER STORE
// =============================================================================

// MemberStore persists member profiles. Profiles are never deleted; members
// leave the network by deactivation.
type MemberStore interface {
	Member(ctx context.Context, id ledger.MemberID) (*MemberProfile, error)

	// ListActive returns active members ordered by id, paged for chunked
	// batch processing.
	ListActive(ctx context.Context, offset, limit int) ([]MemberProfile, error)

	// DirectDownlines returns the members directly sponsored by id.
	DirectDownlines(ctx context.Context, id ledger.MemberID) ([]MemberProfile, error)

	Save(ctx context.Context, m MemberProfile) error

	// UpdateCareerLevel records a career upgrade determined by a run.
	UpdateCareerLevel(ctx context.Context, id ledger.MemberID, level string) error

	// AddPairingPoints adjusts the cumulative leg totals after a ledger
	// posting.
	AddPairingPoints(ctx context.Context, id ledger.MemberID, leg ledger.Leg, points ledger.Points) error
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is the read-only configuration/lookup surface.
type Directory struct {
	params  map[Tier]PackageParams
	sponsor SponsorMatrix
	ladder  Ladder
	members MemberStore
}

func NewDirectory(params map[Tier]PackageParams, sponsor SponsorMatrix, ladder Ladder, members MemberStore) *Directory {
	return &Directory{params: params, sponsor: sponsor, ladder: ladder, members: members}
}

// Params returns the parameters for a tier.
func (d *Directory) Params(tier Tier) (PackageParams, error) {
	p, ok := d.params[tier]
	if !ok {
		return PackageParams{}, fmt.Errorf("%w: tier %q", ErrConfigurationMissing, tier)
	}
	return p, nil
}

// PackageOf resolves a member's package parameters.
func (d *Directory) PackageOf(ctx context.Context, id ledger.MemberID) (PackageParams, error) {
	m, err := d.members.Member(ctx, id)
	if err != nil {
		return PackageParams{}, err
	}
	return d.Params(m.Tier)
}

// SponsorOf returns the member's recruiter.
func (d *Directory) SponsorOf(ctx context.Context, id ledger.MemberID) (ledger.MemberID, error) {
	m, err := d.members.Member(ctx, id)
	if err != nil {
		return "", err
	}
	return m.SponsorID, nil
}

// LegOf returns which leg the member occupies under their sponsor.
func (d *Directory) LegOf(ctx context.Context, id ledger.MemberID) (ledger.Leg, error) {
	m, err := d.members.Member(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Position, nil
}

// SponsorMatrix returns the registration bonus table.
func (d *Directory) SponsorMatrix() SponsorMatrix { return d.sponsor }

// Ladder returns the career ladder.
func (d *Directory) Ladder() Ladder { return d.ladder }

// Members exposes the member store for run iteration.
func (d *Directory) Members() MemberStore { return d.members }
