package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const couponColumns = `id, merchant_id, code, title, discount_type, discount_value,
	min_purchase_amount, max_discount_amount, max_redemptions, max_redemptions_per_customer,
	redeemed_count, start_date, end_date, status, created_at`

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row, c *model.Coupon) error {
	return row.Scan(
		&c.ID,
		&c.MerchantID,
		&c.Code,
		&c.Title,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinPurchaseAmount,
		&c.MaxDiscountAmount,
		&c.MaxRedemptions,
		&c.MaxRedemptionsPerCustomer,
		&c.RedeemedCount,
		&c.StartDate,
		&c.EndDate,
		&c.Status,
		&c.CreatedAt,
	)
}

// Insert inserts a new coupon into the database.
// Used by seeding and tests; coupon authoring lives outside this service.
func (r *CouponRepository) Insert(ctx context.Context, c *model.Coupon) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupons (id, merchant_id, code, title, discount_type, discount_value,
			min_purchase_amount, max_discount_amount, max_redemptions, max_redemptions_per_customer,
			redeemed_count, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.MerchantID, c.Code, c.Title, c.DiscountType, c.DiscountValue,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.MaxRedemptions, c.PerCustomerLimit(),
		c.RedeemedCount, c.StartDate, c.EndDate, c.Status)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert coupon %s: duplicate code: %w", c.Code, service.ErrInvalidRequest)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByID retrieves a coupon by its id.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	var coupon model.Coupon
	if err := scanCoupon(r.pool.QueryRow(ctx, query, id), &coupon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by id %s: %w", id, err)
	}
	return &coupon, nil
}

// GetByCode retrieves a coupon by its human-readable code.
// Returns nil, nil if the coupon is not found.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	var coupon model.Coupon
	if err := scanCoupon(r.pool.QueryRow(ctx, query, code), &coupon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	return &coupon, nil
}

// IncrementRedeemed takes one redemption slot with a single conditional
// UPDATE, so concurrent callers on the same coupon serialize on the row lock
// and re-evaluate the cap after the winner commits.
// Returns the new redeemed_count, or service.ErrLimitReached when no slot is left.
func (r *CouponRepository) IncrementRedeemed(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (int, error) {
	query := `UPDATE coupons
		SET redeemed_count = redeemed_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND (max_redemptions IS NULL OR redeemed_count < max_redemptions)
		RETURNING redeemed_count`

	var count int
	if err := tx.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrLimitReached
		}
		if database.IsConflict(err) {
			return 0, fmt.Errorf("increment redeemed for %s: %w", id, service.ErrStoreConflict)
		}
		return 0, fmt.Errorf("increment redeemed for %s: %w", id, err)
	}
	return count, nil
}
