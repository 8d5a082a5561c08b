/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Implements the four engine collections (approval requests, trip
  records, stamps, coupons) on SQLite. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

UNIQUENESS ENFORCEMENT:
  The reward invariants live in unique indexes, not application locks:
  - idx_unique_trip:   one trip per (user, location, title, date)
  - idx_unique_stamp:  one stamp per (user, location)
  - idx_unique_coupon: one coupon per (user, region, milestone)
  A violated insert is mapped onto the matching sentinel error
  (ErrTripExists / ErrStampExists / ErrCouponExists) so callers can
  treat the duplicate as benign.

STATE-GUARDED TRANSITIONS:
  Approval transitions and coupon redemption are conditional UPDATEs
  (WHERE status = expected). Zero rows affected is disambiguated into
  ErrNotFound vs ErrStateConflict with a follow-up existence check.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/travel.db")  // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: interface contracts
  - engine/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/waygrade/travel-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Approval requests (claim lifecycle)
	CREATE TABLE IF NOT EXISTS approval_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location TEXT NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		content TEXT,
		hashtags_json TEXT,
		proof_image_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		reviewed_at TEXT,
		reviewed_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_user
		ON approval_requests(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_approvals_status
		ON approval_requests(status);

	-- Trip records (confirmed visits, append-only)
	CREATE TABLE IF NOT EXISTS trip_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location TEXT NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		content TEXT,
		hashtags_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trips_user
		ON trip_records(user_id);

	-- CRITICAL: dedup on the raw submitted tuple. Completing the same
	-- approved claim twice must not create a second trip record.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_trip
		ON trip_records(user_id, location, title, date);

	-- Stamps (one badge per user per region)
	CREATE TABLE IF NOT EXISTS stamps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location TEXT NOT NULL,
		region_code TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_stamp
		ON stamps(user_id, location);

	-- Coupons (one grant per user per region per milestone)
	CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		region TEXT NOT NULL,
		milestone INTEGER NOT NULL,
		tier TEXT NOT NULL,
		discount_percent INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		valid_until TEXT NOT NULL,
		created_at TEXT NOT NULL,
		used_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_coupon
		ON coupons(user_id, region, milestone);
	CREATE INDEX IF NOT EXISTS idx_coupons_user_status
		ON coupons(user_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// APPROVAL STORE (engine.ApprovalStore interface)
// =============================================================================

// InsertApproval creates a new request row.
func (s *Store) InsertApproval(ctx context.Context, req engine.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashtagsJSON, _ := json.Marshal(req.Hashtags)

	query := `
		INSERT INTO approval_requests
		(id, user_id, location, title, date, content, hashtags_json,
		 proof_image_ref, status, rejection_reason, created_at, reviewed_at, reviewed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.UserID,
		req.Location,
		req.Title,
		req.Date,
		req.Content,
		string(hashtagsJSON),
		req.ProofImageRef,
		req.Status,
		nullString(req.RejectionReason),
		req.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(req.ReviewedAt),
		nullString(req.ReviewedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval request: %w", err)
	}
	return nil
}

// GetApproval returns a request by id.
func (s *Store) GetApproval(ctx context.Context, id string) (*engine.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, approvalSelect+` WHERE id = ?`, id)

	req, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("approval %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return req, nil
}

// MarkApproved flips pending -> approved.
func (s *Store) MarkApproved(ctx context.Context, id, reviewedBy string, at time.Time) error {
	return s.transition(ctx, id, engine.StatusPending, `
		UPDATE approval_requests
		SET status = 'approved', reviewed_at = ?, reviewed_by = ?
		WHERE id = ? AND status = 'pending'`,
		at.UTC().Format(time.RFC3339), reviewedBy, id)
}

// MarkRejected flips pending -> rejected.
func (s *Store) MarkRejected(ctx context.Context, id, reviewedBy, reason string, at time.Time) error {
	return s.transition(ctx, id, engine.StatusPending, `
		UPDATE approval_requests
		SET status = 'rejected', rejection_reason = ?, reviewed_at = ?, reviewed_by = ?
		WHERE id = ? AND status = 'pending'`,
		reason, at.UTC().Format(time.RFC3339), reviewedBy, id)
}

// MarkCompleted flips approved -> completed.
func (s *Store) MarkCompleted(ctx context.Context, id string, _ time.Time) error {
	return s.transition(ctx, id, engine.StatusApproved, `
		UPDATE approval_requests
		SET status = 'completed'
		WHERE id = ? AND status = 'approved'`,
		id)
}

// DeleteRejected hard-deletes a rejected request.
func (s *Store) DeleteRejected(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM approval_requests WHERE id = ? AND status = 'rejected'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete approval request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.classifyMissed(ctx, id, engine.StatusRejected)
	}
	return nil
}

// ListApprovalsByUser returns the user's non-completed requests,
// newest first.
func (s *Store) ListApprovalsByUser(ctx context.Context, userID string) ([]engine.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := approvalSelect + `
		WHERE user_id = ? AND status != 'completed'
		ORDER BY created_at DESC, rowid DESC`
	return s.queryApprovals(ctx, query, userID)
}

// ListPendingApprovals returns all pending requests, newest first.
func (s *Store) ListPendingApprovals(ctx context.Context) ([]engine.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := approvalSelect + `
		WHERE status = 'pending'
		ORDER BY created_at DESC, rowid DESC`
	return s.queryApprovals(ctx, query)
}

// transition runs a state-guarded UPDATE and disambiguates the
// zero-rows case into not-found vs wrong-state.
func (s *Store) transition(ctx context.Context, id string, want engine.ApprovalStatus, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update approval request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.classifyMissed(ctx, id, want)
	}
	return nil
}

func (s *Store) classifyMissed(ctx context.Context, id string, want engine.ApprovalStatus) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM approval_requests WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("approval %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read approval status: %w", err)
	}
	return fmt.Errorf("approval %s is %s, want %s: %w", id, status, want, engine.ErrStateConflict)
}

const approvalSelect = `
	SELECT id, user_id, location, title, date, content, hashtags_json,
	       proof_image_ref, status, rejection_reason, created_at, reviewed_at, reviewed_by
	FROM approval_requests`

func (s *Store) queryApprovals(ctx context.Context, query string, args ...any) ([]engine.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	var reqs []engine.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*engine.ApprovalRequest, error) {
	var (
		req             engine.ApprovalRequest
		content         sql.NullString
		hashtagsJSON    sql.NullString
		rejectionReason sql.NullString
		createdAt       string
		reviewedAt      sql.NullString
		reviewedBy      sql.NullString
	)

	err := row.Scan(
		&req.ID, &req.UserID, &req.Location, &req.Title, &req.Date,
		&content, &hashtagsJSON, &req.ProofImageRef, &req.Status,
		&rejectionReason, &createdAt, &reviewedAt, &reviewedBy,
	)
	if err != nil {
		return nil, err
	}

	req.Content = content.String
	req.Hashtags = parseHashtags(hashtagsJSON.String)
	req.RejectionReason = rejectionReason.String
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t, _ := time.Parse(time.RFC3339, reviewedAt.String)
		req.ReviewedAt = &t
	}
	return &req, nil
}

// =============================================================================
// TRIP STORE (engine.TripStore interface)
// =============================================================================

// InsertTrip adds a trip record. Duplicate (user, location, title,
// date) tuples come back as ErrTripExists.
func (s *Store) InsertTrip(ctx context.Context, trip engine.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashtagsJSON, _ := json.Marshal(trip.Hashtags)

	query := `
		INSERT INTO trip_records
		(id, user_id, location, title, date, content, hashtags_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		trip.ID,
		trip.UserID,
		trip.Location,
		trip.Title,
		trip.Date,
		trip.Content,
		string(hashtagsJSON),
		trip.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrTripExists
		}
		return fmt.Errorf("failed to insert trip record: %w", err)
	}
	return nil
}

// ListTripsByUser returns the user's trips, newest first.
func (s *Store) ListTripsByUser(ctx context.Context, userID string) ([]engine.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, location, title, date, content, hashtags_json, created_at
		FROM trip_records
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip records: %w", err)
	}
	defer rows.Close()

	var trips []engine.TripRecord
	for rows.Next() {
		var (
			trip         engine.TripRecord
			content      sql.NullString
			hashtagsJSON sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&trip.ID, &trip.UserID, &trip.Location, &trip.Title,
			&trip.Date, &content, &hashtagsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip record: %w", err)
		}
		trip.Content = content.String
		trip.Hashtags = parseHashtags(hashtagsJSON.String)
		trip.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// =============================================================================
// STAMP STORE (engine.StampStore interface)
// =============================================================================

// InsertStamp adds a stamp. A duplicate (user, location) pair comes
// back as ErrStampExists.
func (s *Store) InsertStamp(ctx context.Context, stamp engine.Stamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO stamps (id, user_id, location, region_code, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		stamp.ID,
		stamp.UserID,
		stamp.Location,
		nullString(stamp.RegionCode),
		stamp.Date,
		stamp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrStampExists
		}
		return fmt.Errorf("failed to insert stamp: %w", err)
	}
	return nil
}

// ListStampsByUser returns the user's stamps, newest first.
func (s *Store) ListStampsByUser(ctx context.Context, userID string) ([]engine.Stamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, location, region_code, date, created_at
		FROM stamps
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stamps: %w", err)
	}
	defer rows.Close()

	var stamps []engine.Stamp
	for rows.Next() {
		var (
			stamp      engine.Stamp
			regionCode sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&stamp.ID, &stamp.UserID, &stamp.Location,
			&regionCode, &stamp.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stamp: %w", err)
		}
		stamp.RegionCode = regionCode.String
		stamp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		stamps = append(stamps, stamp)
	}
	return stamps, rows.Err()
}

// CountStampsByUser returns the user's total stamp count.
func (s *Store) CountStampsByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stamps WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stamps: %w", err)
	}
	return count, nil
}

// HasStamp reports whether (user, location) is already stamped.
func (s *Store) HasStamp(ctx context.Context, userID, location string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stamps WHERE user_id = ? AND location = ?`,
		userID, location).Scan(&count)
	return count > 0, err
}

// =============================================================================
// COUPON STORE (engine.CouponStore interface)
// =============================================================================

// InsertCoupon adds a coupon. A duplicate (user, region, milestone)
// tuple comes back as ErrCouponExists.
func (s *Store) InsertCoupon(ctx context.Context, coupon engine.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO coupons
		(id, user_id, region, milestone, tier, discount_percent, status, valid_until, created_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		coupon.ID,
		coupon.UserID,
		coupon.Region,
		coupon.Milestone,
		coupon.Tier,
		coupon.DiscountPercent,
		coupon.Status,
		coupon.ValidUntil.UTC().Format(time.RFC3339),
		coupon.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(coupon.UsedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrCouponExists
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}
	return nil
}

// GetCoupon returns a coupon by id.
func (s *Store) GetCoupon(ctx context.Context, id string) (*engine.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, couponSelect+` WHERE id = ?`, id)
	coupon, err := scanCoupon(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("coupon %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// HasCoupon reports whether (user, region, milestone) is issued.
func (s *Store) HasCoupon(ctx context.Context, userID, regionName string, milestone int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupons WHERE user_id = ? AND region = ? AND milestone = ?`,
		userID, regionName, milestone).Scan(&count)
	return count > 0, err
}

// MarkCouponUsed flips the owner's active coupon to used.
func (s *Store) MarkCouponUsed(ctx context.Context, id, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET status = 'used', used_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'`,
		at.UTC().Format(time.RFC3339), id, userID)
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM coupons WHERE id = ? AND user_id = ?`, id, userID).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("coupon %s: %w", id, engine.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read coupon status: %w", err)
		}
		return fmt.Errorf("coupon %s is %s: %w", id, status, engine.ErrStateConflict)
	}
	return nil
}

// SweepAndListCoupons expires overdue active coupons and returns the
// user's list, newest first. Sweep and read share one transaction so
// a returned coupon is never active past its validity.
func (s *Store) SweepAndListCoupons(ctx context.Context, userID string, now time.Time) ([]engine.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE coupons
		SET status = 'expired'
		WHERE user_id = ? AND status = 'active' AND valid_until < ?`,
		userID, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to expire coupons: %w", err)
	}

	rows, err := tx.QueryContext(ctx, couponSelect+`
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}

	var coupons []engine.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit coupon sweep: %w", err)
	}
	return coupons, nil
}

const couponSelect = `
	SELECT id, user_id, region, milestone, tier, discount_percent,
	       status, valid_until, created_at, used_at
	FROM coupons`

func scanCoupon(row rowScanner) (*engine.Coupon, error) {
	var (
		coupon     engine.Coupon
		validUntil string
		createdAt  string
		usedAt     sql.NullString
	)

	err := row.Scan(
		&coupon.ID, &coupon.UserID, &coupon.Region, &coupon.Milestone,
		&coupon.Tier, &coupon.DiscountPercent, &coupon.Status,
		&validUntil, &createdAt, &usedAt,
	)
	if err != nil {
		return nil, err
	}

	coupon.ValidUntil, _ = time.Parse(time.RFC3339, validUntil)
	coupon.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if usedAt.Valid {
		t, _ := time.Parse(time.RFC3339, usedAt.String)
		coupon.UsedAt = &t
	}
	return &coupon, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseHashtags(raw string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
