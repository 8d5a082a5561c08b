package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waygrade/travel-engine/engine"
	"github.com/waygrade/travel-engine/engine/store"
	"github.com/waygrade/travel-engine/region"
)

func newTestStamps(t *testing.T) (*engine.StampService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := engine.NewStampService(mem, mem, region.NewNormalizer()).WithClock(testClock)
	return svc, mem
}

// =============================================================================
// CLAIM TESTS
// =============================================================================

func TestStampClaim_NotEnoughVisits(t *testing.T) {
	// GIVEN: 3 confirmed visits against a threshold of 5
	// WHEN: claiming the stamp
	// THEN: the claim fails with the structured shortfall error

	svc, mem := newTestStamps(t)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 3)

	_, err := svc.Claim(ctx, "user-1", "제주")
	require.Error(t, err)

	var nev *engine.NotEnoughVisitsError
	require.True(t, errors.As(err, &nev))
	assert.Equal(t, "제주특별자치도", nev.Region)
	assert.Equal(t, 3, nev.Have)
	assert.Equal(t, 2, nev.Remaining())
	assert.True(t, engine.IsClientError(err))
}

func TestStampClaim_AtThreshold(t *testing.T) {
	// GIVEN: exactly 5 confirmed visits, across mixed spellings
	// WHEN: claiming the stamp
	// THEN: the stamp is created under the canonical name with its code

	svc, mem := newTestStamps(t)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 3)
	seedTrips(t, mem, "user-1", "제주도", 2)

	stamp, err := svc.Claim(ctx, "user-1", "제주도")
	require.NoError(t, err)
	assert.Equal(t, "제주특별자치도", stamp.Location)
	assert.Equal(t, "KR-49", stamp.RegionCode)
	assert.Equal(t, testTime.Format("2006-01-02"), stamp.Date)
}

func TestStampClaim_AlreadyClaimed(t *testing.T) {
	svc, mem := newTestStamps(t)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 5)

	_, err := svc.Claim(ctx, "user-1", "제주")
	require.NoError(t, err)

	// A second claim under a different spelling hits the same region.
	_, err = svc.Claim(ctx, "user-1", "제주특별자치도")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrStampExists))
	assert.True(t, engine.IsConflict(err))
}

func TestStampClaim_CustomThreshold(t *testing.T) {
	svc, mem := newTestStamps(t)
	svc.WithThreshold(1)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "부산", 1)

	stamp, err := svc.Claim(ctx, "user-1", "부산")
	require.NoError(t, err)
	assert.Equal(t, "부산광역시", stamp.Location)
}

// =============================================================================
// PROGRESS TESTS
// =============================================================================

func TestStampProgress(t *testing.T) {
	svc, mem := newTestStamps(t)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 2)

	p, err := svc.Progress(ctx, "user-1", "제주")
	require.NoError(t, err)
	assert.Equal(t, "제주특별자치도", p.Region)
	assert.Equal(t, 2, p.Visits)
	assert.Equal(t, engine.StampThreshold, p.Needed)
	assert.Equal(t, 3, p.Remaining)
	assert.False(t, p.Claimed)
}

func TestStampProgress_OverThreshold(t *testing.T) {
	svc, mem := newTestStamps(t)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 7)

	_, err := svc.Claim(ctx, "user-1", "제주")
	require.NoError(t, err)

	p, err := svc.Progress(ctx, "user-1", "제주")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Visits)
	assert.Equal(t, 0, p.Remaining, "remaining never goes negative")
	assert.True(t, p.Claimed)
}

// =============================================================================
// GRADE TESTS
// =============================================================================

func TestGradeFor_FromStamps(t *testing.T) {
	// GIVEN: stamps in three regions
	// WHEN: deriving the grade
	// THEN: level 1 (three stamps per level)

	svc, mem := newTestStamps(t)
	svc.WithThreshold(1)
	ctx := context.Background()

	for _, r := range []string{"제주", "부산", "서울"} {
		seedTrips(t, mem, "user-1", r, 1)
		_, err := svc.Claim(ctx, "user-1", r)
		require.NoError(t, err)
	}

	g, err := svc.GradeFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Level)
	assert.Equal(t, 3, g.StampCount)
}

func TestGradeFor_NoStamps(t *testing.T) {
	svc, _ := newTestStamps(t)

	g, err := svc.GradeFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, g.Level)
	assert.Equal(t, 0, g.StampCount)
}

func TestStampListMine(t *testing.T) {
	svc, mem := newTestStamps(t)
	svc.WithThreshold(1)
	ctx := context.Background()

	seedTrips(t, mem, "user-1", "제주", 1)
	_, err := svc.Claim(ctx, "user-1", "제주")
	require.NoError(t, err)

	stamps, err := svc.ListMine(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, stamps, 1)

	other, err := svc.ListMine(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
