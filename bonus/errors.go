/*
errors.go - Centralized error taxonomy for the compensation engine

PURPOSE:
  All guard errors in one place. Domain packages wrap these with context;
  callers test with errors.Is.

ERROR CATEGORIES:
  1. Run guards        - AlreadyRun (idempotency, not a fault)
  2. Settlement guards - AlreadyProcessed (no double credit, ever)
  3. Argument faults   - InvalidPeriod (defined in ledger, re-exported here)
  4. Skips             - ConfigurationMissing (member skipped, run continues)
*/
package bonus

import (
	"errors"
	"fmt"

	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyRun is returned when a completed run exists for the
	// requested date or period. A guard, not a fault; the caller exits
	// non-zero and takes no corrective action.
	ErrAlreadyRun = errors.New("run already completed for this key")

	// ErrAlreadyProcessed is returned when a settlement transition is
	// attempted on a non-pending bonus. Never silently succeeds, never
	// double-credits.
	ErrAlreadyProcessed = errors.New("bonus already processed")

	// ErrBonusNotFound is returned for an unknown bonus id.
	ErrBonusNotFound = errors.New("bonus not found")

	// ErrDuplicateAward is returned when a bonus with the same award key
	// (run, member, kind, date) already exists. Seen only when a failed
	// run is retried; the earlier attempt's row stands.
	ErrDuplicateAward = errors.New("duplicate bonus award")

	// ErrInvalidPeriod aliases the ledger's argument guard so callers can
	// test the whole taxonomy from one package.
	ErrInvalidPeriod = ledger.ErrInvalidPeriod

	// ErrConfigurationMissing aliases the directory's skip signal.
	ErrConfigurationMissing = network.ErrConfigurationMissing
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// AlreadyRunError carries the run key that blocked a re-run.
type AlreadyRunError struct {
	Key string
}

func (e *AlreadyRunError) Error() string {
	return fmt.Sprintf("run already completed for %s", e.Key)
}

func (e *AlreadyRunError) Unwrap() error { return ErrAlreadyRun }

// AlreadyProcessedError carries the bonus and the status that blocked the
// transition.
type AlreadyProcessedError struct {
	BonusID BonusID
	Status  Status
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("bonus %s already processed (status %s)", e.BonusID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsGuard reports whether the error is an idempotency guard rather than a
// fault. Guard violations are surfaced, never retried.
func IsGuard(err error) bool {
	return errors.Is(err, ErrAlreadyRun) || errors.Is(err, ErrAlreadyProcessed)
}

// IsSkip reports whether a per-member error should be contained (warn and
// continue) instead of aborting the whole batch.
func IsSkip(err error) bool {
	return errors.Is(err, ErrConfigurationMissing) || errors.Is(err, network.ErrMemberNotFound)
}
