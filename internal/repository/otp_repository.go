package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
)

// OTPRepository provides data access for OTP challenges using pgx.
type OTPRepository struct {
	pool ClaimPoolInterface
}

// NewOTPRepository creates a new OTPRepository with the given pool.
func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// NewOTPRepositoryWithPool creates a new OTPRepository with a custom pool interface.
// This is primarily used for testing.
func NewOTPRepositoryWithPool(pool ClaimPoolInterface) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// Insert stores a new challenge.
func (r *OTPRepository) Insert(ctx context.Context, c *model.OTPChallenge) error {
	query := `INSERT INTO otp_challenges (id, identifier, code_hash, purpose, expires_at, is_used, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0, $6)`

	if _, err := r.pool.Exec(ctx, query, c.ID, c.Identifier, c.CodeHash, c.Purpose, c.ExpiresAt, c.CreatedAt); err != nil {
		return fmt.Errorf("insert otp challenge: %w", err)
	}
	return nil
}

// ListOutstanding returns unused, unexpired challenges for an identifier and
// purpose, newest first.
func (r *OTPRepository) ListOutstanding(ctx context.Context, identifier string, purpose model.OTPPurpose, now time.Time) ([]model.OTPChallenge, error) {
	query := `SELECT id, identifier, code_hash, purpose, expires_at, is_used, attempts, created_at
		FROM otp_challenges
		WHERE identifier = $1 AND purpose = $2 AND is_used = FALSE AND expires_at > $3
		ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, identifier, purpose, now)
	if err != nil {
		return nil, fmt.Errorf("list outstanding otp challenges: %w", err)
	}
	defer rows.Close()

	challenges := []model.OTPChallenge{}
	for rows.Next() {
		var c model.OTPChallenge
		if err := rows.Scan(&c.ID, &c.Identifier, &c.CodeHash, &c.Purpose, &c.ExpiresAt, &c.IsUsed, &c.Attempts, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan otp challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate otp challenges: %w", err)
	}
	return challenges, nil
}

// MarkUsed consumes a challenge. The guard makes consumption single-shot
// under concurrent verification and refuses locked or expired challenges.
// It reports false when another caller won or the challenge became unusable.
func (r *OTPRepository) MarkUsed(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	query := `UPDATE otp_challenges SET is_used = TRUE
		WHERE id = $1 AND is_used = FALSE AND attempts < $2 AND expires_at > $3`

	tag, err := r.pool.Exec(ctx, query, id, maxAttempts, now)
	if err != nil {
		return false, fmt.Errorf("mark otp challenge %s used: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementAttempts records a failed verification and returns the new
// attempt count. Returns service.ErrInvalidOrExpired if the challenge was
// consumed in the meantime.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND is_used = FALSE
		RETURNING attempts`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrInvalidOrExpired
		}
		return 0, fmt.Errorf("increment otp attempts for %s: %w", id, err)
	}
	return attempts, nil
}
