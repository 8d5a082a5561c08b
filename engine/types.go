/*
Package engine provides the travel verification and rewards engine.

PURPOSE:
  This package contains the domain types and services that turn a
  user-submitted travel claim into a trusted trip record, accumulate
  verified visits into region stamps, and issue tiered discount
  coupons as visit milestones are reached.

KEY CONCEPTS IN THIS FILE (types.go):
  - Principal:       The resolved {userID, role} acting on a request
  - ApprovalRequest: A claim awaiting admin verification
  - TripRecord:      A confirmed visit, the unit counted for rewards
  - Stamp:           One-time-per-region badge (5 confirmed visits)
  - Coupon:          Discount grant tied to a visit-count milestone

DESIGN PRINCIPLES:
  1. Monotonic transitions: no path leads back into "pending"
  2. Idempotent issuance: stamp/coupon uniqueness lives in storage,
     duplicate-key inserts are benign
  3. Raw vs canonical: trip records keep the location exactly as
     submitted; counting normalizes at read time

SEE ALSO:
  - approval.go: claim lifecycle state machine
  - coupon.go:   milestone ladder and issuance
  - stamp.go:    stamp accrual
  - grade.go:    derived traveler grade
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRINCIPAL - resolved by the upstream auth layer, trusted as-is
// =============================================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal identifies the actor behind a request.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// =============================================================================
// APPROVAL REQUEST - a claim awaiting verification
// =============================================================================

type ApprovalStatus string

const (
	StatusPending   ApprovalStatus = "pending"
	StatusApproved  ApprovalStatus = "approved"
	StatusRejected  ApprovalStatus = "rejected"
	StatusCompleted ApprovalStatus = "completed"
)

// ApprovalRequest is a user's claim to have visited a location,
// pending administrative verification. Location is kept raw (as
// submitted) until the claim produces a TripRecord.
type ApprovalRequest struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Location        string         `json:"location"`
	Title           string         `json:"title"`
	Date            string         `json:"date"` // YYYY-MM-DD
	Content         string         `json:"content"`
	Hashtags        []string       `json:"hashtags"`
	ProofImageRef   string         `json:"proof_image_ref"`
	Status          ApprovalStatus `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
}

// Claim is the user-supplied payload for a new approval request.
type Claim struct {
	Location      string
	Title         string
	Date          string
	Content       string
	Hashtags      []string
	ProofImageRef string
}

// =============================================================================
// TRIP RECORD - a confirmed visit
// =============================================================================

// TripRecord is a confirmed, persisted visit entry. Never overwritten
// once created. Dedup identity is (UserID, Location, Title, Date) with
// the location raw, exactly as submitted.
type TripRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Location  string    `json:"location"`
	Title     string    `json:"title"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Content   string    `json:"content"`
	Hashtags  []string  `json:"hashtags"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// STAMP - one-time-per-region badge
// =============================================================================

// Stamp records a claimed region badge. Location holds the canonical
// region name; at most one stamp exists per (UserID, Location),
// enforced by a storage uniqueness constraint.
type Stamp struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Location   string    `json:"location"`
	RegionCode string    `json:"region_code,omitempty"`
	Date       string    `json:"date"` // YYYY-MM-DD of the claim
	CreatedAt  time.Time `json:"created_at"`
}

// =============================================================================
// COUPON - milestone-tied discount grant
// =============================================================================

type CouponStatus string

const (
	CouponActive  CouponStatus = "active"
	CouponUsed    CouponStatus = "used"
	CouponExpired CouponStatus = "expired"
)

// Coupon is a discount grant for a specific visit-count milestone in
// a specific region. At most one coupon exists per
// (UserID, Region, Milestone), enforced by a uniqueness constraint.
type Coupon struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Region          string       `json:"region"` // canonical
	Milestone       int          `json:"milestone"`
	Tier            string       `json:"tier"`
	DiscountPercent int          `json:"discount_percent"`
	Status          CouponStatus `json:"status"`
	ValidUntil      time.Time    `json:"valid_until"`
	CreatedAt       time.Time    `json:"created_at"`
	UsedAt          *time.Time   `json:"used_at,omitempty"`
}

// Apply returns price reduced by the coupon's discount percent,
// rounded to two decimal places.
func (c Coupon) Apply(price decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromInt(int64(c.DiscountPercent)).Div(decimal.NewFromInt(100))
	return price.Sub(price.Mul(pct)).Round(2)
}

// Overdue reports whether an active coupon should be flipped to
// expired as of now. Used by the lazy expiration sweep.
func (c Coupon) Overdue(now time.Time) bool {
	return c.Status == CouponActive && c.ValidUntil.Before(now)
}
