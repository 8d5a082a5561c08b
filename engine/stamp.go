/*
stamp.go - Region stamp accrual

PURPOSE:
  A stamp is a one-time-per-region badge, claimed manually by the
  user once the region's confirmed visit count reaches the accrual
  threshold (5). Distinct from the automatic coupon issuer: fixed
  threshold, explicit claim, at most one per (user, region).

RACE SAFETY:
  The uniqueness guard is the InsertStamp constraint, not the
  advisory HasStamp check. Two simultaneous claims both attempt the
  insert; the loser gets ErrStampExists, reported as already-claimed.

SEE ALSO:
  - grade.go: total stamp count drives the traveler grade
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StampThreshold is the confirmed-visit count required per region.
const StampThreshold = 5

// StampService handles stamp claims and the derived grade.
type StampService struct {
	trips     TripStore
	stamps    StampStore
	regions   RegionNormalizer
	grades    GradeTable
	threshold int

	now func() time.Time
}

// NewStampService wires a stamp service with the default threshold
// and grade table.
func NewStampService(trips TripStore, stamps StampStore, regions RegionNormalizer) *StampService {
	return &StampService{
		trips:     trips,
		stamps:    stamps,
		regions:   regions,
		grades:    DefaultGradeTable(),
		threshold: StampThreshold,
		now:       time.Now,
	}
}

// WithThreshold overrides the visit threshold (tests).
func (ss *StampService) WithThreshold(n int) *StampService {
	ss.threshold = n
	return ss
}

// WithClock swaps the clock (tests).
func (ss *StampService) WithClock(now func() time.Time) *StampService {
	ss.now = now
	return ss
}

// StampProgress reports how far a user is from claiming a region.
type StampProgress struct {
	Region    string `json:"region"` // canonical
	Visits    int    `json:"visits"`
	Needed    int    `json:"needed"`
	Remaining int    `json:"remaining"`
	Claimed   bool   `json:"claimed"`
}

// Claim creates the stamp for (user, region) once the visit count
// reaches the threshold. Fails with ErrStampExists when already
// claimed and with NotEnoughVisitsError when visits are short.
func (ss *StampService) Claim(ctx context.Context, userID, rawRegion string) (*Stamp, error) {
	target := ss.regions.Normalize(rawRegion)

	claimed, err := ss.stamps.HasStamp(ctx, userID, target)
	if err != nil {
		return nil, fmt.Errorf("claim stamp: %w", err)
	}
	if claimed {
		return nil, fmt.Errorf("%w: %s", ErrStampExists, target)
	}

	visits, err := ss.countVisits(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	if visits < ss.threshold {
		return nil, &NotEnoughVisitsError{Region: target, Have: visits, Needed: ss.threshold}
	}

	now := ss.now()
	stamp := Stamp{
		ID:         uuid.NewString(),
		UserID:     userID,
		Location:   target,
		RegionCode: ss.regions.Code(target),
		Date:       now.Format("2006-01-02"),
		CreatedAt:  now,
	}
	// The insert is the real guard: a concurrent duplicate claim loses
	// here with ErrStampExists.
	if err := ss.stamps.InsertStamp(ctx, stamp); err != nil {
		return nil, err
	}
	return &stamp, nil
}

// Progress reports visits toward the threshold for a region.
func (ss *StampService) Progress(ctx context.Context, userID, rawRegion string) (*StampProgress, error) {
	target := ss.regions.Normalize(rawRegion)

	visits, err := ss.countVisits(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	claimed, err := ss.stamps.HasStamp(ctx, userID, target)
	if err != nil {
		return nil, fmt.Errorf("stamp progress: %w", err)
	}

	remaining := ss.threshold - visits
	if remaining < 0 {
		remaining = 0
	}
	return &StampProgress{
		Region:    target,
		Visits:    visits,
		Needed:    ss.threshold,
		Remaining: remaining,
		Claimed:   claimed,
	}, nil
}

// ListMine returns the user's stamps, newest first.
func (ss *StampService) ListMine(ctx context.Context, userID string) ([]Stamp, error) {
	return ss.stamps.ListStampsByUser(ctx, userID)
}

// GradeFor derives the user's grade from the current stamp count.
// Never persisted.
func (ss *StampService) GradeFor(ctx context.Context, userID string) (*Grade, error) {
	count, err := ss.stamps.CountStampsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("grade: %w", err)
	}
	g := ss.grades.GradeFor(count)
	return &g, nil
}

func (ss *StampService) countVisits(ctx context.Context, userID, target string) (int, error) {
	trips, err := ss.trips.ListTripsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	count := 0
	for _, t := range trips {
		if ss.regions.Normalize(t.Location) == target {
			count++
		}
	}
	return count, nil
}
