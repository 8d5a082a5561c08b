/*
errors.go - Centralized error types for the engine

PURPOSE:
  All engine error values in one place. Services return these wrapped
  with context; the API layer classifies them into HTTP statuses with
  the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation  - bad input, rejected before any state change
  2. State/permission conflicts - wrong transition, wrong owner
  3. Idempotency conflicts - duplicate-key inserts on stamp/coupon
     uniqueness; absorbed by callers, not surfaced as failure
  4. Not found   - reported distinctly from state conflicts

USAGE:
  if errors.Is(err, engine.ErrStateConflict) { ... }

SEE ALSO:
  - store/sqlite/sqlite.go: maps UNIQUE violations onto these
  - api/handlers.go: maps these onto HTTP statuses
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks rejected input. Always wrapped with a
	// human-readable message via fmt.Errorf("%w: ...").
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict is returned when a transition is attempted from
	// the wrong state: the entity was "not found under expected state".
	ErrStateConflict = errors.New("not found under expected state")

	// ErrPermission is returned when the actor does not own the
	// resource or lacks the admin role.
	ErrPermission = errors.New("permission denied")

	// ErrStampExists is returned on a duplicate stamp insert for the
	// same (user, region). Benign under concurrent duplicate claims.
	ErrStampExists = errors.New("stamp already claimed")

	// ErrCouponExists is returned on a duplicate coupon insert for the
	// same (user, region, milestone). Benign: the loser of a
	// concurrent race treats it as "already issued".
	ErrCouponExists = errors.New("coupon already issued")

	// ErrTripExists is returned on a duplicate trip insert for the
	// same (user, location, title, date). Benign: dedup by design.
	ErrTripExists = errors.New("trip record already exists")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotEnoughVisitsError is returned by stamp claims when the confirmed
// visit count for the region is below the accrual threshold.
type NotEnoughVisitsError struct {
	Region string
	Have   int
	Needed int
}

func (e *NotEnoughVisitsError) Error() string {
	return fmt.Sprintf("not enough visits to %s: have %d, need %d more",
		e.Region, e.Have, e.Remaining())
}

// Remaining returns how many more confirmed visits are required.
func (e *NotEnoughVisitsError) Remaining() int {
	return e.Needed - e.Have
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var nev *NotEnoughVisitsError
	return errors.Is(err, ErrValidation) || errors.As(err, &nev)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for wrong-state transitions and duplicate
// uniqueness-guarded inserts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrStampExists) ||
		errors.Is(err, ErrCouponExists)
}

// IsPermission returns true if the actor may not perform the action.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}
