// Package store provides engine.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/waygrade/travel-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds all four collections behind one mutex and enforces the
// same uniqueness semantics as the SQLite store.
type Memory struct {
	mu        sync.RWMutex
	approvals map[string]engine.ApprovalRequest
	trips     map[string]engine.TripRecord
	stamps    map[string]engine.Stamp
	coupons   map[string]engine.Coupon

	tripKeys   map[tripKey]bool
	stampKeys  map[stampKey]bool
	couponKeys map[couponKey]bool
}

type tripKey struct {
	UserID, Location, Title, Date string
}

type stampKey struct {
	UserID, Location string
}

type couponKey struct {
	UserID, Region string
	Milestone      int
}

func NewMemory() *Memory {
	return &Memory{
		approvals:  make(map[string]engine.ApprovalRequest),
		trips:      make(map[string]engine.TripRecord),
		stamps:     make(map[string]engine.Stamp),
		coupons:    make(map[string]engine.Coupon),
		tripKeys:   make(map[tripKey]bool),
		stampKeys:  make(map[stampKey]bool),
		couponKeys: make(map[couponKey]bool),
	}
}

var _ engine.Store = (*Memory)(nil)

// =============================================================================
// APPROVAL STORE
// =============================================================================

func (m *Memory) InsertApproval(_ context.Context, req engine.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals[req.ID] = req
	return nil
}

func (m *Memory) GetApproval(_ context.Context, id string) (*engine.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.approvals[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, engine.ErrNotFound)
	}
	out := req
	return &out, nil
}

func (m *Memory) MarkApproved(_ context.Context, id, reviewedBy string, at time.Time) error {
	return m.transition(id, engine.StatusPending, func(req *engine.ApprovalRequest) {
		req.Status = engine.StatusApproved
		req.ReviewedAt = &at
		req.ReviewedBy = reviewedBy
	})
}

func (m *Memory) MarkRejected(_ context.Context, id, reviewedBy, reason string, at time.Time) error {
	return m.transition(id, engine.StatusPending, func(req *engine.ApprovalRequest) {
		req.Status = engine.StatusRejected
		req.RejectionReason = reason
		req.ReviewedAt = &at
		req.ReviewedBy = reviewedBy
	})
}

func (m *Memory) MarkCompleted(_ context.Context, id string, _ time.Time) error {
	return m.transition(id, engine.StatusApproved, func(req *engine.ApprovalRequest) {
		req.Status = engine.StatusCompleted
	})
}

func (m *Memory) DeleteRejected(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.approvals[id]
	if !ok {
		return fmt.Errorf("approval %s: %w", id, engine.ErrNotFound)
	}
	if req.Status != engine.StatusRejected {
		return fmt.Errorf("approval %s is %s: %w", id, req.Status, engine.ErrStateConflict)
	}
	delete(m.approvals, id)
	return nil
}

func (m *Memory) ListApprovalsByUser(_ context.Context, userID string) ([]engine.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ApprovalRequest
	for _, req := range m.approvals {
		if req.UserID == userID && req.Status != engine.StatusCompleted {
			out = append(out, req)
		}
	}
	sortApprovalsNewestFirst(out)
	return out, nil
}

func (m *Memory) ListPendingApprovals(_ context.Context) ([]engine.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ApprovalRequest
	for _, req := range m.approvals {
		if req.Status == engine.StatusPending {
			out = append(out, req)
		}
	}
	sortApprovalsNewestFirst(out)
	return out, nil
}

func (m *Memory) transition(id string, want engine.ApprovalStatus, mutate func(*engine.ApprovalRequest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.approvals[id]
	if !ok {
		return fmt.Errorf("approval %s: %w", id, engine.ErrNotFound)
	}
	if req.Status != want {
		return fmt.Errorf("approval %s is %s, want %s: %w", id, req.Status, want, engine.ErrStateConflict)
	}
	mutate(&req)
	m.approvals[id] = req
	return nil
}

// =============================================================================
// TRIP STORE
// =============================================================================

func (m *Memory) InsertTrip(_ context.Context, trip engine.TripRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tripKey{UserID: trip.UserID, Location: trip.Location, Title: trip.Title, Date: trip.Date}
	if m.tripKeys[k] {
		return engine.ErrTripExists
	}
	m.tripKeys[k] = true
	m.trips[trip.ID] = trip
	return nil
}

func (m *Memory) ListTripsByUser(_ context.Context, userID string) ([]engine.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.TripRecord
	for _, t := range m.trips {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// =============================================================================
// STAMP STORE
// =============================================================================

func (m *Memory) InsertStamp(_ context.Context, stamp engine.Stamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stampKey{UserID: stamp.UserID, Location: stamp.Location}
	if m.stampKeys[k] {
		return engine.ErrStampExists
	}
	m.stampKeys[k] = true
	m.stamps[stamp.ID] = stamp
	return nil
}

func (m *Memory) ListStampsByUser(_ context.Context, userID string) ([]engine.Stamp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Stamp
	for _, s := range m.stamps {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) CountStampsByUser(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.stamps {
		if s.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) HasStamp(_ context.Context, userID, location string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stampKeys[stampKey{UserID: userID, Location: location}], nil
}

// =============================================================================
// COUPON STORE
// =============================================================================

func (m *Memory) InsertCoupon(_ context.Context, coupon engine.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := couponKey{UserID: coupon.UserID, Region: coupon.Region, Milestone: coupon.Milestone}
	if m.couponKeys[k] {
		return engine.ErrCouponExists
	}
	m.couponKeys[k] = true
	m.coupons[coupon.ID] = coupon
	return nil
}

func (m *Memory) GetCoupon(_ context.Context, id string) (*engine.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", id, engine.ErrNotFound)
	}
	out := c
	return &out, nil
}

func (m *Memory) HasCoupon(_ context.Context, userID, regionName string, milestone int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.couponKeys[couponKey{UserID: userID, Region: regionName, Milestone: milestone}], nil
}

func (m *Memory) MarkCouponUsed(_ context.Context, id, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("coupon %s: %w", id, engine.ErrNotFound)
	}
	if c.Status != engine.CouponActive {
		return fmt.Errorf("coupon %s is %s: %w", id, c.Status, engine.ErrStateConflict)
	}
	c.Status = engine.CouponUsed
	c.UsedAt = &at
	m.coupons[id] = c
	return nil
}

func (m *Memory) SweepAndListCoupons(_ context.Context, userID string, now time.Time) ([]engine.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []engine.Coupon
	for id, c := range m.coupons {
		if c.UserID != userID {
			continue
		}
		if c.Overdue(now) {
			c.Status = engine.CouponExpired
			m.coupons[id] = c
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func sortApprovalsNewestFirst(reqs []engine.ApprovalRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
}
