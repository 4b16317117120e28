package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by RedemptionRepository.
type RedemptionPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for redemption records using pgx.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a new RedemptionRepository with a custom pool interface.
// This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Insert writes a redemption record within the caller's transaction.
// The unique claim_id column turns a second redemption of the same claim
// into service.ErrClaimNotActive.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error {
	query := `INSERT INTO redemptions (id, claim_id, coupon_id, customer_id, merchant_id,
			transaction_amount, discount_amount, verification_method, otp_verified,
			device_info, ip_address, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		red.ID, red.ClaimID, red.CouponID, red.CustomerID, red.MerchantID,
		red.TransactionAmount, red.DiscountAmount, red.VerificationMethod, red.OTPVerified,
		nullableString(red.DeviceInfo), nullableString(red.IPAddress), red.RedeemedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrClaimNotActive
		}
		if database.IsConflict(err) {
			return fmt.Errorf("insert redemption: %w", service.ErrStoreConflict)
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// ListByCustomer returns a customer's redemption history, newest first.
// On success, returns an empty slice (not nil) when there is no history.
func (r *RedemptionRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error) {
	query := `SELECT id, claim_id, coupon_id, customer_id, merchant_id, transaction_amount,
			discount_amount, verification_method, otp_verified, redeemed_at
		FROM redemptions
		WHERE customer_id = $1
		ORDER BY redeemed_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	redemptions := []model.Redemption{}
	for rows.Next() {
		var red model.Redemption
		if err := rows.Scan(
			&red.ID, &red.ClaimID, &red.CouponID, &red.CustomerID, &red.MerchantID,
			&red.TransactionAmount, &red.DiscountAmount, &red.VerificationMethod,
			&red.OTPVerified, &red.RedeemedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, red)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}
	return redemptions, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
