/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine entities
  carry their own JSON tags and are returned directly; the types here
  cover request payloads and the response envelopes that combine an
  entity with operation metadata.

SEE ALSO:
  - handlers.go: where these are decoded and filled
*/
package api

import "github.com/waygrade/travel-engine/engine"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitClaimRequest creates a new approval request.
type SubmitClaimRequest struct {
	Location      string   `json:"location"`
	Title         string   `json:"title"`
	Date          string   `json:"date"` // YYYY-MM-DD
	Content       string   `json:"content"`
	Hashtags      []string `json:"hashtags"`
	ProofImageRef string   `json:"proof_image_ref"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BulkCompleteRequest lists the approval request ids to complete.
type BulkCompleteRequest struct {
	IDs []string `json:"ids"`
}

// LogTripRequest records a manual trip.
type LogTripRequest struct {
	Location string   `json:"location"`
	Title    string   `json:"title"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}

// ClaimStampRequest claims the stamp for a region.
type ClaimStampRequest struct {
	Region string `json:"region"`
}

// WelcomeCouponRequest requests the welcome-tier coupon for a region.
type WelcomeCouponRequest struct {
	Region string `json:"region"`
}

// RedeemCouponRequest optionally carries a price so the response can
// include the discounted amount.
type RedeemCouponRequest struct {
	Price string `json:"price,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LogTripResponse reports the trip insert outcome and the coupon
// evaluation that followed it. Trip is nil when the entry was a
// duplicate of an existing record.
type LogTripResponse struct {
	Trip           *engine.TripRecord    `json:"trip,omitempty"`
	Created        bool                  `json:"created"`
	CouponIssuance engine.CouponIssuance `json:"coupon_issuance"`
}

// RedeemCouponResponse returns the redeemed coupon plus the discounted
// price when the request supplied one.
type RedeemCouponResponse struct {
	Coupon          *engine.Coupon `json:"coupon"`
	DiscountedPrice string         `json:"discounted_price,omitempty"`
}

// WelcomeCouponResponse reports the ensure-issue outcome. Issued is
// nil when the coupon already existed.
type WelcomeCouponResponse struct {
	Issued        *engine.Coupon `json:"issued,omitempty"`
	AlreadyIssued bool           `json:"already_issued"`
}

// ErrorResponse is the standard error body. Reason is a stable
// machine-readable code for the cases clients branch on; the visit
// fields accompany the not-enough-visits reason.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Visits    *int   `json:"visits,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}
