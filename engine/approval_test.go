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

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	owner = engine.Principal{UserID: "user-1", Role: engine.RoleUser}
	admin = engine.Principal{UserID: "admin-1", Role: engine.RoleAdmin}
)

func newTestApprovals(t *testing.T) (*engine.ApprovalService, *engine.TripService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	issuer := engine.NewCouponIssuer(mem, mem, region.NewNormalizer()).WithClock(testClock)
	trips := engine.NewTripService(mem, issuer, zerolog.Nop()).WithClock(testClock)
	approvals := engine.NewApprovalService(mem, trips, zerolog.Nop()).WithClock(testClock)
	return approvals, trips, mem
}

var jejuClaim = engine.Claim{
	Location:      "제주",
	Title:         "성산일출봉 등반",
	Date:          "2026-02-10",
	Content:       "일출 봤다",
	Hashtags:      []string{"제주", "일출"},
	ProofImageRef: "img/jeju-001.jpg",
}

func submitApproved(t *testing.T, approvals *engine.ApprovalService, claim engine.Claim) *engine.ApprovalRequest {
	t.Helper()
	ctx := context.Background()
	req, err := approvals.Submit(ctx, owner, claim)
	require.NoError(t, err)
	req, err = approvals.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	return req
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)

	req, err := approvals.Submit(context.Background(), owner, jejuClaim)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, engine.StatusPending, req.Status)
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "제주", req.Location, "location stored raw")
	assert.Equal(t, testTime, req.CreatedAt)
}

func TestSubmit_Validation(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*engine.Claim)
	}{
		{"missing location", func(c *engine.Claim) { c.Location = "" }},
		{"missing title", func(c *engine.Claim) { c.Title = "" }},
		{"bad date", func(c *engine.Claim) { c.Date = "Feb 10" }},
		{"missing proof", func(c *engine.Claim) { c.ProofImageRef = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := jejuClaim
			tt.mutate(&claim)
			_, err := approvals.Submit(ctx, owner, claim)
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrValidation))
		})
	}
}

// =============================================================================
// REVIEW TESTS
// =============================================================================

func TestApprove(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	approved, err := approvals.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusApproved, approved.Status)
	assert.Equal(t, "admin-1", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)
}

func TestApprove_RequiresAdmin(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	_, err = approvals.Approve(ctx, owner, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsPermission(err))
}

func TestApprove_WrongState(t *testing.T) {
	// GIVEN: an already-approved request
	// WHEN: approving it again
	// THEN: the transition is rejected as a state conflict

	approvals, _, _ := newTestApprovals(t)
	req := submitApproved(t, approvals, jejuClaim)

	_, err := approvals.Approve(context.Background(), admin, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))
}

func TestReject(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	rejected, err := approvals.Reject(ctx, admin, req.ID, "사진이 흐릿함")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusRejected, rejected.Status)
	assert.Equal(t, "사진이 흐릿함", rejected.RejectionReason)
}

func TestReject_RequiresReason(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	_, err = approvals.Reject(ctx, admin, req.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestComplete(t *testing.T) {
	// GIVEN: an approved claim
	// WHEN: the owner completes it
	// THEN: trip record created, status completed, coupon evaluated

	approvals, trips, _ := newTestApprovals(t)
	ctx := context.Background()
	req := submitApproved(t, approvals, jejuClaim)

	res, err := approvals.Complete(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, res.Request.Status)
	assert.True(t, res.TripRecordCreated)
	assert.True(t, res.CouponIssuance.Attempted)
	assert.Equal(t, 1, res.CouponIssuance.VisitCount)
	require.NotNil(t, res.CouponIssuance.Issued)
	assert.Equal(t, "VISIT_1", res.CouponIssuance.Issued.Tier)

	recorded, err := trips.ListMine(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "제주", recorded[0].Location)
}

func TestComplete_NotOwner(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	req := submitApproved(t, approvals, jejuClaim)

	_, err := approvals.Complete(context.Background(), engine.Principal{UserID: "user-2"}, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsPermission(err))
}

func TestComplete_Pending(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	_, err = approvals.Complete(ctx, owner, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))
}

func TestComplete_Twice(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()
	req := submitApproved(t, approvals, jejuClaim)

	_, err := approvals.Complete(ctx, owner, req.ID)
	require.NoError(t, err)

	_, err = approvals.Complete(ctx, owner, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))
}

func TestComplete_TripAlreadyLogged(t *testing.T) {
	// GIVEN: the owner manually logged the identical trip beforehand
	// WHEN: completing the approved claim for the same tuple
	// THEN: completion succeeds without creating a second record

	approvals, trips, _ := newTestApprovals(t)
	ctx := context.Background()

	_, created, _, err := trips.Log(ctx, owner, engine.TripInput{
		Location: jejuClaim.Location,
		Title:    jejuClaim.Title,
		Date:     jejuClaim.Date,
	})
	require.NoError(t, err)
	require.True(t, created)

	req := submitApproved(t, approvals, jejuClaim)
	res, err := approvals.Complete(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, res.Request.Status)
	assert.False(t, res.TripRecordCreated)

	recorded, err := trips.ListMine(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, recorded, 1)
}

func TestBulkComplete(t *testing.T) {
	// GIVEN: one approved and one still-pending claim
	// WHEN: bulk completing both
	// THEN: per-item outcomes in input order, failure does not stop the batch

	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	good := submitApproved(t, approvals, jejuClaim)

	second := jejuClaim
	second.Title = "부산 여행"
	second.Location = "부산"
	bad, err := approvals.Submit(ctx, owner, second)
	require.NoError(t, err)

	results := approvals.BulkComplete(ctx, owner, []string{good.ID, bad.ID, "no-such-id"})
	require.Len(t, results, 3)

	assert.Equal(t, good.ID, results[0].ID)
	assert.True(t, results[0].OK)
	assert.True(t, results[0].TripRecordCreated)

	assert.Equal(t, bad.ID, results[1].ID)
	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Error)

	assert.False(t, results[2].OK)
}

// =============================================================================
// DELETION & LISTING TESTS
// =============================================================================

func TestDeleteRejected(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)
	_, err = approvals.Reject(ctx, admin, req.ID, "흐릿함")
	require.NoError(t, err)

	require.NoError(t, approvals.DeleteRejected(ctx, owner, req.ID))

	err = approvals.DeleteRejected(ctx, owner, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestDeleteRejected_WrongStateOrOwner(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	req, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	err = approvals.DeleteRejected(ctx, owner, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err), "pending requests cannot be deleted")

	_, err = approvals.Reject(ctx, admin, req.ID, "흐릿함")
	require.NoError(t, err)

	err = approvals.DeleteRejected(ctx, engine.Principal{UserID: "user-2"}, req.ID)
	require.Error(t, err)
	assert.True(t, engine.IsPermission(err))
}

func TestListMine_ExcludesCompleted(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	done := submitApproved(t, approvals, jejuClaim)
	_, err := approvals.Complete(ctx, owner, done.ID)
	require.NoError(t, err)

	second := jejuClaim
	second.Title = "부산"
	_, err = approvals.Submit(ctx, owner, second)
	require.NoError(t, err)

	mine, err := approvals.ListMine(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, engine.StatusPending, mine[0].Status)
}

func TestListPending_AdminOnly(t *testing.T) {
	approvals, _, _ := newTestApprovals(t)
	ctx := context.Background()

	_, err := approvals.Submit(ctx, owner, jejuClaim)
	require.NoError(t, err)

	_, err = approvals.ListPending(ctx, owner)
	require.Error(t, err)
	assert.True(t, engine.IsPermission(err))

	pending, err := approvals.ListPending(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
