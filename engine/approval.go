/*
approval.go - Travel claim approval state machine

PURPOSE:
  Turns a submitted claim plus proof into a trusted trip record via
  admin verification.

STATE MACHINE:

  submit            approve              complete
  ──────▶ pending ──────────▶ approved ──────────▶ completed
             │
             │ reject
             ▼
          rejected ──────────▶ (deleted by owner)

  No transition leads back into pending. A rejected request can only
  be deleted by its owner; resubmission is a fresh request with a
  fresh identity.

COMPLETION SIDE EFFECTS (fixed order):
  (a) trip record add-if-absent on (user, location, title, date)
  (b) mark the request completed
  (c) coupon milestone evaluation for (user, location), best-effort:
      its failure is logged and reported in the result, never
      propagated as operation failure

  A crash between (b) and (c) leaves a completed approval with no
  coupon issued; that inconsistency is accepted and not compensated.

SEE ALSO:
  - trips.go:  AddIfAbsent and coupon evaluation
  - store.go:  state-guarded transition contract
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ApprovalService orchestrates the claim lifecycle.
type ApprovalService struct {
	approvals ApprovalStore
	trips     *TripService
	log       zerolog.Logger

	now func() time.Time
}

// NewApprovalService wires the approval workflow.
func NewApprovalService(approvals ApprovalStore, trips *TripService, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{approvals: approvals, trips: trips, log: log, now: time.Now}
}

// WithClock swaps the clock (tests).
func (as *ApprovalService) WithClock(now func() time.Time) *ApprovalService {
	as.now = now
	return as
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit creates a new pending request. Duplicate claims are allowed
// to coexist in the queue; trip record dedup at completion time is
// the guard against accidental duplicates.
func (as *ApprovalService) Submit(ctx context.Context, actor Principal, claim Claim) (*ApprovalRequest, error) {
	if claim.Location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if claim.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", claim.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	if claim.ProofImageRef == "" {
		return nil, fmt.Errorf("%w: proof image is required", ErrValidation)
	}

	req := ApprovalRequest{
		ID:            uuid.NewString(),
		UserID:        actor.UserID,
		Location:      claim.Location,
		Title:         claim.Title,
		Date:          claim.Date,
		Content:       claim.Content,
		Hashtags:      claim.Hashtags,
		ProofImageRef: claim.ProofImageRef,
		Status:        StatusPending,
		CreatedAt:     as.now(),
	}
	if err := as.approvals.InsertApproval(ctx, req); err != nil {
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	return &req, nil
}

// =============================================================================
// ADMIN REVIEW
// =============================================================================

// Approve flips a pending request to approved. Admin only.
func (as *ApprovalService) Approve(ctx context.Context, actor Principal, id string) (*ApprovalRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrPermission)
	}
	now := as.now()
	if err := as.approvals.MarkApproved(ctx, id, actor.UserID, now); err != nil {
		return nil, err
	}
	return as.approvals.GetApproval(ctx, id)
}

// Reject flips a pending request to rejected with a required reason.
// Admin only.
func (as *ApprovalService) Reject(ctx context.Context, actor Principal, id, reason string) (*ApprovalRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrPermission)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	now := as.now()
	if err := as.approvals.MarkRejected(ctx, id, actor.UserID, reason, now); err != nil {
		return nil, err
	}
	return as.approvals.GetApproval(ctx, id)
}

// =============================================================================
// COMPLETION
// =============================================================================

// CompleteResult reports the two-phase outcome of completion: the
// trip record phase (whose failure fails the operation) and the
// coupon phase (captured, never thrown through).
type CompleteResult struct {
	Request           *ApprovalRequest `json:"request"`
	TripRecordCreated bool             `json:"trip_record_created"`
	CouponIssuance    CouponIssuance   `json:"coupon_issuance"`
}

// Complete flips the owner's approved request to completed, creating
// the trip record if absent and then evaluating coupon milestones.
func (as *ApprovalService) Complete(ctx context.Context, actor Principal, id string) (*CompleteResult, error) {
	req, err := as.approvals.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: request belongs to another user", ErrPermission)
	}
	if req.Status != StatusApproved {
		return nil, fmt.Errorf("%w: request is %s, not approved", ErrStateConflict, req.Status)
	}

	// (a) Trip record, deduped on the raw tuple.
	_, created, err := as.trips.AddIfAbsent(ctx, req.UserID, TripInput{
		Location: req.Location,
		Title:    req.Title,
		Date:     req.Date,
		Content:  req.Content,
		Hashtags: req.Hashtags,
	})
	if err != nil {
		return nil, err
	}

	// (b) Status flip, guarded against a concurrent completion.
	if err := as.approvals.MarkCompleted(ctx, id, as.now()); err != nil {
		return nil, err
	}
	req.Status = StatusCompleted

	// (c) Coupon evaluation, best-effort.
	issuance := as.trips.EvaluateCoupons(ctx, req.UserID, req.Location)

	return &CompleteResult{
		Request:           req,
		TripRecordCreated: created,
		CouponIssuance:    issuance,
	}, nil
}

// BulkCompleteItem is the per-id outcome of a bulk completion.
type BulkCompleteItem struct {
	ID                string `json:"id"`
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	TripRecordCreated bool   `json:"trip_record_created,omitempty"`
}

// BulkComplete applies Complete to each id sequentially. One failing
// item never prevents the others; outcomes are reported in input
// order.
func (as *ApprovalService) BulkComplete(ctx context.Context, actor Principal, ids []string) []BulkCompleteItem {
	results := make([]BulkCompleteItem, 0, len(ids))
	for _, id := range ids {
		res, err := as.Complete(ctx, actor, id)
		if err != nil {
			as.log.Warn().Err(err).Str("request_id", id).Msg("bulk complete item failed")
			results = append(results, BulkCompleteItem{ID: id, Error: err.Error()})
			continue
		}
		results = append(results, BulkCompleteItem{
			ID:                id,
			OK:                true,
			TripRecordCreated: res.TripRecordCreated,
		})
	}
	return results
}

// =============================================================================
// DELETION & LISTING
// =============================================================================

// DeleteRejected hard-deletes the owner's rejected request so a fresh
// claim can be submitted.
func (as *ApprovalService) DeleteRejected(ctx context.Context, actor Principal, id string) error {
	req, err := as.approvals.GetApproval(ctx, id)
	if err != nil {
		return err
	}
	if req.UserID != actor.UserID {
		return fmt.Errorf("%w: request belongs to another user", ErrPermission)
	}
	return as.approvals.DeleteRejected(ctx, id)
}

// ListMine returns the user's requests still requiring attention
// (status != completed), newest first.
func (as *ApprovalService) ListMine(ctx context.Context, actor Principal) ([]ApprovalRequest, error) {
	return as.approvals.ListApprovalsByUser(ctx, actor.UserID)
}

// ListPending returns every pending request, newest first. Admin only.
func (as *ApprovalService) ListPending(ctx context.Context, actor Principal) ([]ApprovalRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrPermission)
	}
	return as.approvals.ListPendingApprovals(ctx)
}
