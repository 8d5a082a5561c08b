/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the boundary between domain logic and the database. The
  engine owns four independent collections: approval requests, trip
  records, stamps, and coupons. Implementations exist for SQLite
  (store/sqlite) and in-memory (engine/store).

UNIQUENESS CONTRACT:
  InsertTrip, InsertStamp, and InsertCoupon must attempt the insert
  and map a storage-level unique-constraint violation onto
  ErrTripExists / ErrStampExists / ErrCouponExists. Callers rely on
  this instead of check-then-insert, which races under concurrent
  duplicate requests.

CONDITIONAL TRANSITIONS:
  The Mark* and Delete* approval methods and MarkCouponUsed are
  state-guarded: they must only mutate a row currently in the
  expected state and return ErrStateConflict when the row exists in
  another state (ErrNotFound when it does not exist at all).

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - engine/store/memory.go: in-memory implementation for tests
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// APPROVAL STORE
// =============================================================================

// ApprovalStore persists approval requests through their lifecycle.
type ApprovalStore interface {
	// InsertApproval creates a new pending request.
	InsertApproval(ctx context.Context, req ApprovalRequest) error

	// GetApproval returns a request by id, or ErrNotFound.
	GetApproval(ctx context.Context, id string) (*ApprovalRequest, error)

	// MarkApproved flips pending -> approved and stamps the reviewer.
	MarkApproved(ctx context.Context, id, reviewedBy string, at time.Time) error

	// MarkRejected flips pending -> rejected and stores the reason.
	MarkRejected(ctx context.Context, id, reviewedBy, reason string, at time.Time) error

	// MarkCompleted flips approved -> completed.
	MarkCompleted(ctx context.Context, id string, at time.Time) error

	// DeleteRejected hard-deletes a rejected request.
	DeleteRejected(ctx context.Context, id string) error

	// ListApprovalsByUser returns the user's requests with
	// status != completed, newest first.
	ListApprovalsByUser(ctx context.Context, userID string) ([]ApprovalRequest, error)

	// ListPendingApprovals returns all pending requests, newest first.
	ListPendingApprovals(ctx context.Context) ([]ApprovalRequest, error)
}

// =============================================================================
// TRIP STORE
// =============================================================================

// TripStore persists confirmed visits. Append-only: no update or
// delete exists for trip records.
type TripStore interface {
	// InsertTrip persists a trip record. Returns ErrTripExists when a
	// record with the same (user, location, title, date) already exists.
	InsertTrip(ctx context.Context, trip TripRecord) error

	// ListTripsByUser returns all of the user's trips, newest first.
	ListTripsByUser(ctx context.Context, userID string) ([]TripRecord, error)
}

// =============================================================================
// STAMP STORE
// =============================================================================

// StampStore persists claimed region stamps.
type StampStore interface {
	// InsertStamp persists a stamp. Returns ErrStampExists when the
	// (user, location) pair is already stamped.
	InsertStamp(ctx context.Context, stamp Stamp) error

	// ListStampsByUser returns the user's stamps, newest first.
	ListStampsByUser(ctx context.Context, userID string) ([]Stamp, error)

	// CountStampsByUser returns the user's total stamp count.
	CountStampsByUser(ctx context.Context, userID string) (int, error)

	// HasStamp reports whether the user already holds a stamp for the
	// canonical location. Advisory only; InsertStamp is the guard.
	HasStamp(ctx context.Context, userID, location string) (bool, error)
}

// =============================================================================
// COUPON STORE
// =============================================================================

// CouponStore persists milestone coupons.
type CouponStore interface {
	// InsertCoupon persists a coupon. Returns ErrCouponExists when the
	// (user, region, milestone) tuple is already issued.
	InsertCoupon(ctx context.Context, coupon Coupon) error

	// GetCoupon returns a coupon by id, or ErrNotFound.
	GetCoupon(ctx context.Context, id string) (*Coupon, error)

	// HasCoupon reports whether (user, region, milestone) is issued.
	HasCoupon(ctx context.Context, userID, regionName string, milestone int) (bool, error)

	// MarkCouponUsed flips active -> used for the owner's coupon.
	MarkCouponUsed(ctx context.Context, id, userID string, at time.Time) error

	// SweepAndListCoupons flips the user's overdue active coupons to
	// expired, then returns the full list newest first. Both steps run
	// inside the same storage transaction where supported.
	SweepAndListCoupons(ctx context.Context, userID string, now time.Time) ([]Coupon, error)
}

// Store bundles the four collections. The SQLite and memory
// implementations satisfy the whole interface.
type Store interface {
	ApprovalStore
	TripStore
	StampStore
	CouponStore
}
