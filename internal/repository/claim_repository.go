package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// ClaimPoolInterface defines the database operations needed by ClaimRepository.
type ClaimPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ClaimRepository provides data access for wallet claims using pgx.
type ClaimRepository struct {
	pool ClaimPoolInterface
}

// NewClaimRepository creates a new ClaimRepository with the given pool.
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// NewClaimRepositoryWithPool creates a new ClaimRepository with a custom pool interface.
// This is primarily used for testing.
func NewClaimRepositoryWithPool(pool ClaimPoolInterface) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// CountActive counts active and redeemed claims of a coupon by one customer.
func (r *ClaimRepository) CountActive(ctx context.Context, couponID, customerID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM claimed_coupons
		WHERE coupon_id = $1 AND customer_id = $2 AND status IN ('active', 'redeemed')`

	var n int
	if err := r.pool.QueryRow(ctx, query, couponID, customerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims for coupon %s: %w", couponID, err)
	}
	return n, nil
}

// Insert records a claim in one statement. The row is only produced while the
// customer's active-or-redeemed count is below limit, and claim_seq takes the
// next free sequence so that two racing inserts hit the
// (coupon_id, customer_id, claim_seq) unique constraint instead of both
// succeeding.
// Returns service.ErrAlreadyClaimed when the limit is reached. A lost race
// is also ErrAlreadyClaimed for single-claim coupons; with a higher limit the
// loser may still fit, so it gets service.ErrStoreConflict and can retry.
func (r *ClaimRepository) Insert(ctx context.Context, claim *model.ClaimedCoupon, limit int) error {
	query := `INSERT INTO claimed_coupons (id, coupon_id, customer_id, claim_seq, status, claimed_at)
		SELECT $1, $2, $3, COALESCE(MAX(claim_seq), 0) + 1, 'active', $4
		FROM claimed_coupons
		WHERE coupon_id = $2 AND customer_id = $3
		HAVING COUNT(*) FILTER (WHERE status IN ('active', 'redeemed')) < $5
		RETURNING claim_seq`

	err := r.pool.QueryRow(ctx, query, claim.ID, claim.CouponID, claim.CustomerID, claim.ClaimedAt, limit).
		Scan(&claim.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrAlreadyClaimed
		}
		if database.IsUniqueViolation(err) {
			if limit <= 1 {
				return service.ErrAlreadyClaimed
			}
			return fmt.Errorf("insert claim: %w", service.ErrStoreConflict)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	claim.Status = model.ClaimActive
	return nil
}

const claimColumns = `id, coupon_id, customer_id, claim_seq, status, claimed_at`

func scanClaim(row pgx.Row, c *model.ClaimedCoupon) error {
	return row.Scan(&c.ID, &c.CouponID, &c.CustomerID, &c.Seq, &c.Status, &c.ClaimedAt)
}

// GetByID retrieves a claim by id.
// Returns nil, nil if the claim is not found.
func (r *ClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ClaimedCoupon, error) {
	query := `SELECT ` + claimColumns + ` FROM claimed_coupons WHERE id = $1`

	var claim model.ClaimedCoupon
	if err := scanClaim(r.pool.QueryRow(ctx, query, id), &claim); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get claim %s: %w", id, err)
	}
	return &claim, nil
}

// FindActive retrieves the oldest active claim of a coupon by a customer.
// Returns nil, nil if there is none.
func (r *ClaimRepository) FindActive(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	query := `SELECT ` + claimColumns + ` FROM claimed_coupons
		WHERE coupon_id = $1 AND customer_id = $2 AND status = 'active'
		ORDER BY claim_seq
		LIMIT 1`

	var claim model.ClaimedCoupon
	if err := scanClaim(r.pool.QueryRow(ctx, query, couponID, customerID), &claim); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active claim for coupon %s: %w", couponID, err)
	}
	return &claim, nil
}

// UpdateStatus moves a claim from one status to another with a guarded
// UPDATE. It reports false when the claim was not in the from status.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, tx database.TxQuerier, id uuid.UUID, from, to model.ClaimStatus) (bool, error) {
	if tx == nil {
		tx = r.pool
	}
	query := `UPDATE claimed_coupons SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	tag, err := tx.Exec(ctx, query, id, from, to)
	if err != nil {
		if database.IsConflict(err) {
			return false, fmt.Errorf("update claim %s status: %w", id, service.ErrStoreConflict)
		}
		return false, fmt.Errorf("update claim %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByCustomer returns a customer's wallet, newest claim first.
// On success, returns an empty slice (not nil) when the wallet is empty.
func (r *ClaimRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error) {
	query := `SELECT cc.id, cc.coupon_id, cc.customer_id, cc.claim_seq, cc.status, cc.claimed_at,
			c.id, c.merchant_id, c.code, c.title, c.discount_type, c.discount_value,
			c.min_purchase_amount, c.max_discount_amount, c.max_redemptions, c.max_redemptions_per_customer,
			c.redeemed_count, c.start_date, c.end_date, c.status, c.created_at
		FROM claimed_coupons cc
		JOIN coupons c ON c.id = cc.coupon_id
		WHERE cc.customer_id = $1
		ORDER BY cc.claimed_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list wallet for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	entries := []model.WalletEntry{}
	for rows.Next() {
		var e model.WalletEntry
		c := &e.Coupon
		if err := rows.Scan(
			&e.ID, &e.CouponID, &e.CustomerID, &e.Seq, &e.Status, &e.ClaimedAt,
			&c.ID, &c.MerchantID, &c.Code, &c.Title, &c.DiscountType, &c.DiscountValue,
			&c.MinPurchaseAmount, &c.MaxDiscountAmount, &c.MaxRedemptions, &c.MaxRedemptionsPerCustomer,
			&c.RedeemedCount, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return entries, nil
}

// ListExpirable returns ids of active claims whose coupon window closed
// before now, oldest first.
func (r *ClaimRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT cc.id FROM claimed_coupons cc
		JOIN coupons c ON c.id = cc.coupon_id
		WHERE cc.status = 'active' AND c.end_date <= $1
		ORDER BY cc.claimed_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable claims: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expirable claim id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expirable claims: %w", err)
	}
	return ids, nil
}
