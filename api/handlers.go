/*
handlers.go - HTTP API handlers for the travel verification engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the engine services.

ENDPOINTS:
  Approvals:
    POST   /api/approvals                 Submit a travel claim
    GET    /api/approvals                 My non-completed claims
    GET    /api/approvals/pending         All pending claims (admin)
    POST   /api/approvals/{id}/approve    Approve (admin)
    POST   /api/approvals/{id}/reject     Reject with reason (admin)
    POST   /api/approvals/{id}/complete   Complete (owner)
    POST   /api/approvals/complete-batch  Bulk complete (owner)
    DELETE /api/approvals/{id}            Delete rejected (owner)

  Trips:
    POST   /api/trips                     Log a manual trip
    GET    /api/trips                     My trips

  Stamps & grade:
    POST   /api/stamps                    Claim a region stamp
    GET    /api/stamps                    My stamps
    GET    /api/stamps/progress           Visits toward the threshold
    GET    /api/grade                     My derived grade

  Coupons:
    GET    /api/coupons                   My coupons (after expiry sweep)
    POST   /api/coupons/{id}/redeem       Redeem an active coupon
    POST   /api/coupons/welcome           Ensure the welcome coupon

  Regions:
    GET    /api/regions                   Canonical region list

ERROR HANDLING:
  Engine errors are classified by the helpers in engine/errors.go and
  mapped onto HTTP statuses:
  - 400: validation failures, not-enough-visits
  - 403: wrong owner, missing admin role
  - 404: missing entity
  - 409: wrong-state transition, already-claimed stamp, duplicate coupon
  - 500: everything else

SEE ALSO:
  - dto.go:     Request/response data structures
  - auth.go:    Principal resolution
  - server.go:  Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/waygrade/travel-engine/engine"
	"github.com/waygrade/travel-engine/region"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Approvals *engine.ApprovalService
	Trips     *engine.TripService
	Stamps    *engine.StampService
	Coupons   *engine.CouponIssuer
	Regions   *region.Normalizer
	Log       zerolog.Logger
}

// NewHandler creates a handler over the wired engine services.
func NewHandler(
	approvals *engine.ApprovalService,
	trips *engine.TripService,
	stamps *engine.StampService,
	coupons *engine.CouponIssuer,
	regions *region.Normalizer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		Approvals: approvals,
		Trips:     trips,
		Stamps:    stamps,
		Coupons:   coupons,
		Regions:   regions,
		Log:       log,
	}
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// SubmitClaim creates a new pending approval request.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req SubmitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Approvals.Submit(r.Context(), principal(r), engine.Claim{
		Location:      req.Location,
		Title:         req.Title,
		Date:          req.Date,
		Content:       req.Content,
		Hashtags:      req.Hashtags,
		ProofImageRef: req.ProofImageRef,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to submit claim", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListMyApprovals returns the caller's non-completed requests.
func (h *Handler) ListMyApprovals(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Approvals.ListMine(r.Context(), principal(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list claims", err)
		return
	}
	if reqs == nil {
		reqs = []engine.ApprovalRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListPendingApprovals returns every pending request. Admin only.
func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Approvals.ListPending(r.Context(), principal(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list pending claims", err)
		return
	}
	if reqs == nil {
		reqs = []engine.ApprovalRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ApproveClaim flips a pending request to approved. Admin only.
func (h *Handler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Approvals.Approve(r.Context(), principal(r), id)
	if err != nil {
		h.writeEngineError(w, "Failed to approve claim", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RejectClaim flips a pending request to rejected. Admin only.
func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Approvals.Reject(r.Context(), principal(r), id, body.Reason)
	if err != nil {
		h.writeEngineError(w, "Failed to reject claim", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CompleteClaim finalizes the owner's approved request: trip record,
// status flip, then best-effort coupon evaluation.
func (h *Handler) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Approvals.Complete(r.Context(), principal(r), id)
	if err != nil {
		h.writeEngineError(w, "Failed to complete claim", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BulkCompleteClaims completes each listed request, reporting per-item
// outcomes. The response is 200 even when some items failed.
func (h *Handler) BulkCompleteClaims(w http.ResponseWriter, r *http.Request) {
	var req BulkCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "At least one id is required", nil)
		return
	}

	results := h.Approvals.BulkComplete(r.Context(), principal(r), req.IDs)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// DeleteRejectedClaim removes the owner's rejected request.
func (h *Handler) DeleteRejectedClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Approvals.DeleteRejected(r.Context(), principal(r), id); err != nil {
		h.writeEngineError(w, "Failed to delete claim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// TRIP HANDLERS
// =============================================================================

// LogTrip records a manual trip and evaluates coupon milestones.
func (h *Handler) LogTrip(w http.ResponseWriter, r *http.Request) {
	var req LogTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	trip, created, issuance, err := h.Trips.Log(r.Context(), principal(r), engine.TripInput{
		Location: req.Location,
		Title:    req.Title,
		Date:     req.Date,
		Content:  req.Content,
		Hashtags: req.Hashtags,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to log trip", err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK // duplicate entry, nothing new persisted
	}
	writeJSON(w, status, LogTripResponse{
		Trip:           trip,
		Created:        created,
		CouponIssuance: issuance,
	})
}

// ListMyTrips returns the caller's trips, newest first.
func (h *Handler) ListMyTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.Trips.ListMine(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeEngineError(w, "Failed to list trips", err)
		return
	}
	if trips == nil {
		trips = []engine.TripRecord{}
	}
	writeJSON(w, http.StatusOK, trips)
}

// =============================================================================
// STAMP & GRADE HANDLERS
// =============================================================================

// ClaimStamp claims the region stamp once the visit threshold is met.
func (h *Handler) ClaimStamp(w http.ResponseWriter, r *http.Request) {
	var req ClaimStampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Region == "" {
		writeError(w, http.StatusBadRequest, "Region is required", nil)
		return
	}

	stamp, err := h.Stamps.Claim(r.Context(), principal(r).UserID, req.Region)
	if err != nil {
		h.writeEngineError(w, "Failed to claim stamp", err)
		return
	}
	writeJSON(w, http.StatusCreated, stamp)
}

// ListMyStamps returns the caller's stamps, newest first.
func (h *Handler) ListMyStamps(w http.ResponseWriter, r *http.Request) {
	stamps, err := h.Stamps.ListMine(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeEngineError(w, "Failed to list stamps", err)
		return
	}
	if stamps == nil {
		stamps = []engine.Stamp{}
	}
	writeJSON(w, http.StatusOK, stamps)
}

// StampProgress reports visits toward the stamp threshold for the
// region given in the query string.
func (h *Handler) StampProgress(w http.ResponseWriter, r *http.Request) {
	regionName := r.URL.Query().Get("region")
	if regionName == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'region' is required", nil)
		return
	}

	progress, err := h.Stamps.Progress(r.Context(), principal(r).UserID, regionName)
	if err != nil {
		h.writeEngineError(w, "Failed to compute stamp progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetGrade returns the caller's derived traveler grade.
func (h *Handler) GetGrade(w http.ResponseWriter, r *http.Request) {
	grade, err := h.Stamps.GradeFor(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeEngineError(w, "Failed to compute grade", err)
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

// =============================================================================
// COUPON HANDLERS
// =============================================================================

// ListMyCoupons returns the caller's coupons after the lazy expiration
// sweep.
func (h *Handler) ListMyCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.ListMine(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeEngineError(w, "Failed to list coupons", err)
		return
	}
	if coupons == nil {
		coupons = []engine.Coupon{}
	}
	writeJSON(w, http.StatusOK, coupons)
}

// RedeemCoupon flips the owner's active coupon to used. When the
// request carries a price, the response includes the discounted amount.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RedeemCouponRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	var price *decimal.Decimal
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid price", err)
			return
		}
		price = &p
	}

	coupon, err := h.Coupons.Redeem(r.Context(), principal(r), id)
	if err != nil {
		h.writeEngineError(w, "Failed to redeem coupon", err)
		return
	}

	resp := RedeemCouponResponse{Coupon: coupon}
	if price != nil {
		resp.DiscountedPrice = coupon.Apply(*price).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// WelcomeCoupon ensures the welcome-tier coupon exists for the region.
// Idempotent: a repeat request reports already_issued instead of
// failing.
func (h *Handler) WelcomeCoupon(w http.ResponseWriter, r *http.Request) {
	var req WelcomeCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Region == "" {
		writeError(w, http.StatusBadRequest, "Region is required", nil)
		return
	}

	coupon, err := h.Coupons.EnsureIssue(r.Context(), principal(r).UserID, req.Region, 0)
	if err != nil {
		h.writeEngineError(w, "Failed to issue welcome coupon", err)
		return
	}

	if coupon == nil {
		writeJSON(w, http.StatusOK, WelcomeCouponResponse{AlreadyIssued: true})
		return
	}
	writeJSON(w, http.StatusCreated, WelcomeCouponResponse{Issued: coupon})
}

// =============================================================================
// REGION HANDLERS
// =============================================================================

// ListRegions returns the canonical region list.
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Regions.Canonical())
}

// Health is the liveness probe. No auth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError classifies an engine error into an HTTP status.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	var nev *engine.NotEnoughVisitsError
	switch {
	case errors.As(err, &nev):
		visits := nev.Have
		remaining := nev.Remaining()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     message,
			Details:   err.Error(),
			Reason:    "not-enough-visits",
			Visits:    &visits,
			Remaining: &remaining,
		})
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsPermission(err):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, engine.ErrStampExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Reason:  "already-claimed",
		})
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
