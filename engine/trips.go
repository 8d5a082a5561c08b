/*
trips.go - Confirmed trip records and dedup

PURPOSE:
  The trip record store is the source of truth for confirmed visits.
  Records are created either directly (manual trip log) or by the
  approval workflow on completion; both paths funnel through
  AddIfAbsent and then independently trigger coupon evaluation.

DEDUP:
  Identity is the raw 4-tuple (user, location, title, date). Two
  differently-spelled names for the same region are distinct trips
  for dedup purposes; normalization happens only when counting.

SEE ALSO:
  - approval.go: creation-via-approval path
  - coupon.go:   counting and issuance
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CouponIssuance reports the outcome of the best-effort coupon
// evaluation that follows a trip record insert. A failed evaluation
// is logged and recorded here but never fails the enclosing
// operation.
type CouponIssuance struct {
	Attempted  bool    `json:"attempted"`
	VisitCount int     `json:"visit_count"`
	Issued     *Coupon `json:"issued,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
}

// TripInput is the payload for a manual trip log.
type TripInput struct {
	Location string
	Title    string
	Date     string
	Content  string
	Hashtags []string
}

// TripService creates and lists confirmed trip records.
type TripService struct {
	trips  TripStore
	issuer *CouponIssuer
	log    zerolog.Logger

	now func() time.Time
}

// NewTripService wires a trip service.
func NewTripService(trips TripStore, issuer *CouponIssuer, log zerolog.Logger) *TripService {
	return &TripService{trips: trips, issuer: issuer, log: log, now: time.Now}
}

// WithClock swaps the clock (tests).
func (ts *TripService) WithClock(now func() time.Time) *TripService {
	ts.now = now
	return ts
}

// AddIfAbsent inserts a trip record unless one already exists for the
// same (user, location, title, date). Returns the record and whether
// it was created; a duplicate is benign.
func (ts *TripService) AddIfAbsent(ctx context.Context, userID string, in TripInput) (*TripRecord, bool, error) {
	trip := TripRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Location:  in.Location,
		Title:     in.Title,
		Date:      in.Date,
		Content:   in.Content,
		Hashtags:  in.Hashtags,
		CreatedAt: ts.now(),
	}
	err := ts.trips.InsertTrip(ctx, trip)
	if errors.Is(err, ErrTripExists) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("add trip: %w", err)
	}
	return &trip, true, nil
}

// Log records a manual trip and then evaluates coupon milestones for
// the visited region, best-effort.
func (ts *TripService) Log(ctx context.Context, actor Principal, in TripInput) (*TripRecord, bool, CouponIssuance, error) {
	if err := validateTripInput(in); err != nil {
		return nil, false, CouponIssuance{}, err
	}

	trip, created, err := ts.AddIfAbsent(ctx, actor.UserID, in)
	if err != nil {
		return nil, false, CouponIssuance{}, err
	}

	var issuance CouponIssuance
	if created {
		issuance = ts.EvaluateCoupons(ctx, actor.UserID, in.Location)
	}
	return trip, created, issuance, nil
}

// ListMine returns the user's trips, newest first.
func (ts *TripService) ListMine(ctx context.Context, userID string) ([]TripRecord, error) {
	return ts.trips.ListTripsByUser(ctx, userID)
}

// EvaluateCoupons runs the milestone issuer for (user, region) and
// swallows any failure: the caller's operation already succeeded and
// must not be failed by the reward side effect.
func (ts *TripService) EvaluateCoupons(ctx context.Context, userID, rawRegion string) CouponIssuance {
	issued, count, err := ts.issuer.IssueByVisit(ctx, userID, rawRegion, true)
	if err != nil {
		ts.log.Error().Err(err).
			Str("user_id", userID).
			Str("region", rawRegion).
			Msg("coupon evaluation failed")
		return CouponIssuance{Attempted: true, Failed: true}
	}
	return CouponIssuance{Attempted: true, VisitCount: count, Issued: issued}
}

func validateTripInput(in TripInput) error {
	if in.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return nil
}
