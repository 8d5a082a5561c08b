/*
coupon.go - Milestone-based discount coupon issuance

PURPOSE:
  Evaluates a user's accumulated confirmed visits per region against
  a fixed discount ladder and issues at most one new tier per
  invocation: the highest currently-reachable tier not yet issued.
  Lower tiers the user "skipped past" are never back-filled.

LADDER:
  visits  tier      discount
  0       WELCOME   5%
  1       VISIT_1   10%
  2       VISIT_2   7%
  3       VISIT_3   10%
  5       VISIT_5   12%
  7       VISIT_7   15%
  9       VISIT_9   20%

ISSUANCE ALGORITHM (IssueByVisit):
  1. Normalize the region
  2. Recount trip records whose normalized location matches
  3. Take ladder entries with visits <= count, sorted descending
  4. Attempt the insert for each in turn; a uniqueness violation
     means "already issued", walk on to the next lower tier
  5. First successful insert wins; nothing eligible issues nothing

EXPIRATION:
  Lazy. SweepAndListCoupons flips overdue active coupons to expired
  inside the read path; no background sweeper exists.

SEE ALSO:
  - approval.go: fires IssueByVisit best-effort on completion
  - store.go:    InsertCoupon uniqueness contract
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RegionNormalizer canonicalizes free-text locations. Satisfied by
// *region.Normalizer.
type RegionNormalizer interface {
	Normalize(input string) string
	Code(canonicalName string) string
}

// =============================================================================
// MILESTONE LADDER
// =============================================================================

// Milestone is one rung of the discount ladder.
type Milestone struct {
	Visits          int    `json:"visits"`
	Tier            string `json:"tier"`
	DiscountPercent int    `json:"discount_percent"`
}

// MilestoneLadder is the fixed ascending visit-count ladder.
type MilestoneLadder []Milestone

// DefaultLadder returns the standard seven-tier ladder.
func DefaultLadder() MilestoneLadder {
	return MilestoneLadder{
		{Visits: 0, Tier: "WELCOME", DiscountPercent: 5},
		{Visits: 1, Tier: "VISIT_1", DiscountPercent: 10},
		{Visits: 2, Tier: "VISIT_2", DiscountPercent: 7},
		{Visits: 3, Tier: "VISIT_3", DiscountPercent: 10},
		{Visits: 5, Tier: "VISIT_5", DiscountPercent: 12},
		{Visits: 7, Tier: "VISIT_7", DiscountPercent: 15},
		{Visits: 9, Tier: "VISIT_9", DiscountPercent: 20},
	}
}

// Eligible returns the rungs with Visits <= count, highest first.
func (l MilestoneLadder) Eligible(count int, includeWelcome bool) []Milestone {
	var out []Milestone
	for _, m := range l {
		if m.Visits == 0 && !includeWelcome {
			continue
		}
		if m.Visits <= count {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Visits > out[j].Visits })
	return out
}

// Find returns the rung with the given visit threshold.
func (l MilestoneLadder) Find(visits int) (Milestone, bool) {
	for _, m := range l {
		if m.Visits == visits {
			return m, true
		}
	}
	return Milestone{}, false
}

// =============================================================================
// COUPON ISSUER
// =============================================================================

// CouponValidity is how long a freshly issued coupon stays active.
const CouponValidity = 30 * 24 * time.Hour

// CouponIssuer evaluates visit milestones and issues coupons.
type CouponIssuer struct {
	trips   TripStore
	coupons CouponStore
	regions RegionNormalizer
	ladder  MilestoneLadder

	now func() time.Time
}

// NewCouponIssuer wires an issuer with the default ladder.
func NewCouponIssuer(trips TripStore, coupons CouponStore, regions RegionNormalizer) *CouponIssuer {
	return &CouponIssuer{
		trips:   trips,
		coupons: coupons,
		regions: regions,
		ladder:  DefaultLadder(),
		now:     time.Now,
	}
}

// WithLadder swaps the ladder (tests).
func (ci *CouponIssuer) WithLadder(l MilestoneLadder) *CouponIssuer {
	ci.ladder = l
	return ci
}

// WithClock swaps the clock (tests).
func (ci *CouponIssuer) WithClock(now func() time.Time) *CouponIssuer {
	ci.now = now
	return ci
}

// VisitCount recounts the user's confirmed visits whose normalized
// location equals the normalized target region. Always recomputed
// from the trip records; there is no cached counter.
func (ci *CouponIssuer) VisitCount(ctx context.Context, userID, rawRegion string) (int, string, error) {
	target := ci.regions.Normalize(rawRegion)
	trips, err := ci.trips.ListTripsByUser(ctx, userID)
	if err != nil {
		return 0, target, fmt.Errorf("count visits: %w", err)
	}
	count := 0
	for _, t := range trips {
		if ci.regions.Normalize(t.Location) == target {
			count++
		}
	}
	return count, target, nil
}

// IssueByVisit issues the highest eligible, not-yet-issued milestone
// coupon for the user's visit count in the region. Returns the issued
// coupon (nil when every eligible tier is already issued or none is
// eligible) and the visit count that was evaluated.
func (ci *CouponIssuer) IssueByVisit(ctx context.Context, userID, rawRegion string, includeWelcome bool) (*Coupon, int, error) {
	count, target, err := ci.VisitCount(ctx, userID, rawRegion)
	if err != nil {
		return nil, 0, err
	}

	for _, m := range ci.ladder.Eligible(count, includeWelcome) {
		coupon := ci.build(userID, target, m)
		err := ci.coupons.InsertCoupon(ctx, coupon)
		if errors.Is(err, ErrCouponExists) {
			continue // already issued, try the next lower tier
		}
		if err != nil {
			return nil, count, fmt.Errorf("issue %s for %s: %w", m.Tier, target, err)
		}
		return &coupon, count, nil
	}
	return nil, count, nil
}

// EnsureIssue is the idempotent single-tier entry point: it inserts
// the coupon for the given milestone if absent. A duplicate insert is
// benign and returns (nil, nil) so concurrent duplicate requests
// converge to the same end state.
func (ci *CouponIssuer) EnsureIssue(ctx context.Context, userID, rawRegion string, milestone int) (*Coupon, error) {
	m, ok := ci.ladder.Find(milestone)
	if !ok {
		return nil, fmt.Errorf("%w: unknown milestone %d", ErrValidation, milestone)
	}

	target := ci.regions.Normalize(rawRegion)
	coupon := ci.build(userID, target, m)
	err := ci.coupons.InsertCoupon(ctx, coupon)
	if errors.Is(err, ErrCouponExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ensure %s for %s: %w", m.Tier, target, err)
	}
	return &coupon, nil
}

// ListMine returns the user's coupons newest first, after the lazy
// expiration sweep has flipped overdue active coupons to expired.
func (ci *CouponIssuer) ListMine(ctx context.Context, userID string) ([]Coupon, error) {
	return ci.coupons.SweepAndListCoupons(ctx, userID, ci.now())
}

// Redeem flips the owner's active coupon to used.
func (ci *CouponIssuer) Redeem(ctx context.Context, actor Principal, couponID string) (*Coupon, error) {
	coupon, err := ci.coupons.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: coupon belongs to another user", ErrPermission)
	}
	now := ci.now()
	if err := ci.coupons.MarkCouponUsed(ctx, couponID, actor.UserID, now); err != nil {
		return nil, err
	}
	coupon.Status = CouponUsed
	coupon.UsedAt = &now
	return coupon, nil
}

func (ci *CouponIssuer) build(userID, regionName string, m Milestone) Coupon {
	now := ci.now()
	return Coupon{
		ID:              uuid.NewString(),
		UserID:          userID,
		Region:          regionName,
		Milestone:       m.Visits,
		Tier:            m.Tier,
		DiscountPercent: m.DiscountPercent,
		Status:          CouponActive,
		ValidUntil:      now.Add(CouponValidity),
		CreatedAt:       now,
	}
}
