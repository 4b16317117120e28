package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// ClaimService puts coupons into customers' wallets.
type ClaimService struct {
	registry *CouponRegistry
	ledger   *WalletLedger
}

// NewClaimService creates a new ClaimService.
func NewClaimService(registry *CouponRegistry, ledger *WalletLedger) *ClaimService {
	return &ClaimService{registry: registry, ledger: ledger}
}

// Claim adds a coupon to a customer's wallet.
// Claiming does not consume a redemption slot, so an exhausted coupon can
// still be claimed while it is active and inside its window.
// Returns:
//   - an *EligibilityError (matching ErrNotEligible) if the coupon is missing,
//     inactive, not started or expired
//   - ErrAlreadyClaimed if the customer reached the per-customer limit
func (s *ClaimService) Claim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	// 1. Status and validity window
	coupon, err := s.registry.GetClaimable(ctx, couponID)
	if err != nil {
		return nil, err
	}

	// 2. Per-customer limit. Fast path only; RecordClaim enforces it atomically.
	limit := coupon.PerCustomerLimit()
	held, err := s.ledger.CountActiveClaims(ctx, couponID, customerID)
	if err != nil {
		return nil, err
	}
	if held >= limit {
		return nil, ErrAlreadyClaimed
	}

	// 3. Record
	claim, err := s.ledger.RecordClaim(ctx, couponID, customerID, limit)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}

	return claim, nil
}

// GetClaimable returns a coupon that can currently be claimed.
func (s *ClaimService) GetClaimable(ctx context.Context, couponID uuid.UUID) (*model.CouponResponse, error) {
	coupon, err := s.registry.GetClaimable(ctx, couponID)
	if err != nil {
		return nil, err
	}
	return model.NewCouponResponse(coupon), nil
}

// Validate looks up a coupon by code and reports whether it can be used.
// Lookup and eligibility failures are reported in the response, not as an
// error; only invalid input and store failures return an error.
func (s *ClaimService) Validate(ctx context.Context, code string) (*model.ValidateCouponResponse, error) {
	coupon, err := s.registry.ValidateCode(ctx, code)
	switch {
	case err == nil:
		return &model.ValidateCouponResponse{Valid: true, Coupon: model.NewCouponResponse(coupon)}, nil
	case errors.Is(err, ErrLimitReached):
		return &model.ValidateCouponResponse{Reason: "limit_reached", Coupon: model.NewCouponResponse(coupon)}, nil
	}

	reason, ok := EligibilityReasonOf(err)
	if !ok {
		return nil, err
	}
	resp := &model.ValidateCouponResponse{Reason: string(reason)}
	if reason != ReasonNotFound && coupon != nil {
		resp.Coupon = model.NewCouponResponse(coupon)
	}
	return resp, nil
}

// ListWallet returns every claim a customer holds.
func (s *ClaimService) ListWallet(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error) {
	return s.ledger.ListWallet(ctx, customerID)
}

// GetActiveClaim returns the customer's active claim of a coupon.
// Returns ErrClaimNotFound if there is none.
func (s *ClaimService) GetActiveClaim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	return s.ledger.FindActiveClaim(ctx, couponID, customerID)
}
