package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// ClaimRepositoryInterface defines the interface for claim data access.
type ClaimRepositoryInterface interface {
	CountActive(ctx context.Context, couponID, customerID uuid.UUID) (int, error)
	Insert(ctx context.Context, claim *model.ClaimedCoupon, limit int) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ClaimedCoupon, error)
	FindActive(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
	UpdateStatus(ctx context.Context, tx database.TxQuerier, id uuid.UUID, from, to model.ClaimStatus) (bool, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// WalletLedger tracks which customer holds which coupon and the status of
// each claim. Claims are never deleted; they only move from active to a
// terminal status.
type WalletLedger struct {
	repo  ClaimRepositoryInterface
	now   func() time.Time
	newID func() uuid.UUID
}

// NewWalletLedger creates a WalletLedger backed by repo.
func NewWalletLedger(repo ClaimRepositoryInterface) *WalletLedger {
	return &WalletLedger{repo: repo, now: time.Now, newID: uuid.New}
}

// WithClock replaces the time source. Primarily used for testing.
func (l *WalletLedger) WithClock(now func() time.Time) *WalletLedger {
	l.now = now
	return l
}

// CountActiveClaims counts the active and redeemed claims a customer holds
// for a coupon.
func (l *WalletLedger) CountActiveClaims(ctx context.Context, couponID, customerID uuid.UUID) (int, error) {
	n, err := l.repo.CountActive(ctx, couponID, customerID)
	if err != nil {
		return 0, fmt.Errorf("count active claims: %w", err)
	}
	return n, nil
}

// RecordClaim inserts an active claim unless the customer already holds
// limit active-or-redeemed claims of the coupon. The limit check and the
// insert are one store operation.
func (l *WalletLedger) RecordClaim(ctx context.Context, couponID, customerID uuid.UUID, limit int) (*model.ClaimedCoupon, error) {
	if limit < 1 {
		limit = 1
	}
	claim := &model.ClaimedCoupon{
		ID:         l.newID(),
		CouponID:   couponID,
		CustomerID: customerID,
		Status:     model.ClaimActive,
		ClaimedAt:  l.now().UTC(),
	}
	if err := l.repo.Insert(ctx, claim, limit); err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("record claim: %w", err)
	}
	return claim, nil
}

// GetClaim returns a claim by id.
// Returns ErrClaimNotFound if the claim doesn't exist.
func (l *WalletLedger) GetClaim(ctx context.Context, claimID uuid.UUID) (*model.ClaimedCoupon, error) {
	claim, err := l.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if claim == nil {
		return nil, ErrClaimNotFound
	}
	return claim, nil
}

// FindActiveClaim returns the customer's active claim of a coupon.
// Returns ErrClaimNotFound if there is none.
func (l *WalletLedger) FindActiveClaim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	claim, err := l.repo.FindActive(ctx, couponID, customerID)
	if err != nil {
		return nil, fmt.Errorf("find active claim: %w", err)
	}
	if claim == nil {
		return nil, ErrClaimNotFound
	}
	return claim, nil
}

// MarkRedeemed transitions an active claim to redeemed inside tx.
// Returns ErrInvalidTransition if the claim is not currently active.
func (l *WalletLedger) MarkRedeemed(ctx context.Context, tx database.TxQuerier, claimID uuid.UUID) error {
	ok, err := l.repo.UpdateStatus(ctx, tx, claimID, model.ClaimActive, model.ClaimRedeemed)
	if err != nil {
		return fmt.Errorf("mark claim redeemed: %w", err)
	}
	if !ok {
		return ErrInvalidTransition
	}
	return nil
}

// MarkExpired transitions an active claim to expired. It is a no-op for a
// claim that is already redeemed or expired.
// Returns ErrClaimNotFound if the claim doesn't exist.
func (l *WalletLedger) MarkExpired(ctx context.Context, claimID uuid.UUID) error {
	ok, err := l.repo.UpdateStatus(ctx, nil, claimID, model.ClaimActive, model.ClaimExpired)
	if err != nil {
		return fmt.Errorf("mark claim expired: %w", err)
	}
	if ok {
		return nil
	}

	claim, err := l.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status.Terminal() {
		return nil
	}
	// Still active: the row changed between the guarded update and the
	// re-read, which only happens under contention.
	return ErrStoreConflict
}

// ListWallet returns every claim a customer holds, newest first.
func (l *WalletLedger) ListWallet(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error) {
	entries, err := l.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list wallet: %w", err)
	}
	return entries, nil
}

// ExpireStale expires up to batch active claims whose coupon window has
// closed and returns how many were expired. A failure on one claim is
// logged and does not stop the sweep.
func (l *WalletLedger) ExpireStale(ctx context.Context, batch int) (int, error) {
	ids, err := l.repo.ListExpirable(ctx, l.now().UTC(), batch)
	if err != nil {
		return 0, fmt.Errorf("list expirable claims: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := l.MarkExpired(ctx, id); err != nil {
			log.Warn().Err(err).Str("claim_id", id.String()).Msg("failed to expire claim")
			continue
		}
		expired++
	}
	return expired, nil
}
