package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"

	"github.com/waygrade/travel-engine/engine"
	"github.com/waygrade/travel-engine/engine/store"
	"github.com/waygrade/travel-engine/region"
)

func newTestTrips(t *testing.T) (*engine.TripService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	issuer := engine.NewCouponIssuer(mem, mem, region.NewNormalizer()).WithClock(testClock)
	svc := engine.NewTripService(mem, issuer, zerolog.Nop()).WithClock(testClock)
	return svc, mem
}

var jejuTrip = engine.TripInput{
	Location: "제주",
	Title:    "첫 제주 여행",
	Date:     "2026-02-10",
	Content:  "성산일출봉",
	Hashtags: []string{"제주", "일출"},
}

// =============================================================================
// LOG & DEDUP TESTS
// =============================================================================

func TestTripLog_CreatesAndEvaluates(t *testing.T) {
	// GIVEN: a fresh user
	// WHEN: logging a first trip to 제주
	// THEN: the record keeps the raw spelling, and the milestone
	//       evaluation issues the 1-visit coupon for the canonical region

	svc, _ := newTestTrips(t)
	ctx := context.Background()
	actor := engine.Principal{UserID: "user-1"}

	trip, created, issuance, err := svc.Log(ctx, actor, jejuTrip)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "제주", trip.Location, "raw spelling preserved on the record")

	assert.True(t, issuance.Attempted)
	assert.Equal(t, 1, issuance.VisitCount)
	require.NotNil(t, issuance.Issued)
	assert.Equal(t, "VISIT_1", issuance.Issued.Tier)
	assert.Equal(t, "제주특별자치도", issuance.Issued.Region)
}

func TestTripLog_DuplicateTuple(t *testing.T) {
	// GIVEN: an identical (location, title, date) already logged
	// WHEN: logging it again
	// THEN: nothing is persisted and no evaluation runs

	svc, _ := newTestTrips(t)
	ctx := context.Background()
	actor := engine.Principal{UserID: "user-1"}

	_, created, _, err := svc.Log(ctx, actor, jejuTrip)
	require.NoError(t, err)
	require.True(t, created)

	trip, created, issuance, err := svc.Log(ctx, actor, jejuTrip)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, trip)
	assert.False(t, issuance.Attempted)

	trips, err := svc.ListMine(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, trips, 1)
}

func TestTripLog_DifferentTitleIsDistinct(t *testing.T) {
	svc, _ := newTestTrips(t)
	ctx := context.Background()
	actor := engine.Principal{UserID: "user-1"}

	_, created, _, err := svc.Log(ctx, actor, jejuTrip)
	require.NoError(t, err)
	require.True(t, created)

	second := jejuTrip
	second.Title = "두번째 제주 여행"
	_, created, issuance, err := svc.Log(ctx, actor, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, issuance.VisitCount)
}

func TestTripLog_Validation(t *testing.T) {
	svc, _ := newTestTrips(t)
	ctx := context.Background()
	actor := engine.Principal{UserID: "user-1"}

	tests := []struct {
		name string
		in   engine.TripInput
	}{
		{"missing location", engine.TripInput{Title: "t", Date: "2026-02-10"}},
		{"missing title", engine.TripInput{Location: "제주", Date: "2026-02-10"}},
		{"bad date", engine.TripInput{Location: "제주", Title: "t", Date: "02/10/2026"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := svc.Log(ctx, actor, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrValidation))
		})
	}
}

func TestTripsScopedToUser(t *testing.T) {
	svc, _ := newTestTrips(t)
	ctx := context.Background()

	_, _, _, err := svc.Log(ctx, engine.Principal{UserID: "user-1"}, jejuTrip)
	require.NoError(t, err)

	trips, err := svc.ListMine(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, trips)
}
