package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	IncrementRedeemed(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (int, error)
}

// Reservation is a redemption slot taken inside an open transaction. It
// becomes permanent only when that transaction commits.
type Reservation struct {
	CouponID      uuid.UUID
	RedeemedCount int
}

var hundred = decimal.NewFromInt(100)

// CouponRegistry answers whether a coupon is currently claimable or
// redeemable and owns its redemption counter.
type CouponRegistry struct {
	repo CouponRepositoryInterface
	now  func() time.Time
}

// NewCouponRegistry creates a CouponRegistry backed by repo.
func NewCouponRegistry(repo CouponRepositoryInterface) *CouponRegistry {
	return &CouponRegistry{repo: repo, now: time.Now}
}

// WithClock replaces the time source. Primarily used for testing.
func (r *CouponRegistry) WithClock(now func() time.Time) *CouponRegistry {
	r.now = now
	return r
}

// Get returns a coupon regardless of its eligibility.
// Returns ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRegistry) Get(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	coupon, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil || coupon.Status == model.CouponDeleted {
		return nil, ErrCouponNotFound
	}
	return coupon, nil
}

// GetClaimable returns the coupon only if it is active and inside its
// validity window. Otherwise it returns an *EligibilityError.
func (r *CouponRegistry) GetClaimable(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	coupon, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if err := r.CheckEligible(coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// ValidateCode looks a coupon up by its code and checks eligibility. A
// coupon whose slots are all consumed reports ErrLimitReached; this is
// informational only, claiming such a coupon is still allowed.
func (r *CouponRegistry) ValidateCode(ctx context.Context, code string) (*model.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidRequest
	}
	coupon, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if err := r.CheckEligible(coupon); err != nil {
		return coupon, err
	}
	if coupon.Exhausted() {
		return coupon, ErrLimitReached
	}
	return coupon, nil
}

// CheckEligible applies the status and [start, end) window rules at the
// current time. A nil or deleted coupon is not_found.
func (r *CouponRegistry) CheckEligible(c *model.Coupon) error {
	if c == nil || c.Status == model.CouponDeleted {
		return notEligible(ReasonNotFound)
	}
	switch c.Status {
	case model.CouponActive:
	case model.CouponExpired:
		return notEligible(ReasonExpired)
	default:
		return notEligible(ReasonInactive)
	}

	now := r.now()
	if now.Before(c.StartDate) {
		return notEligible(ReasonNotStarted)
	}
	if !now.Before(c.EndDate) {
		return notEligible(ReasonExpired)
	}
	return nil
}

// ReserveRedemptionSlot takes one slot of the coupon's capacity inside tx.
// This is the only place redeemed_count changes. Returns ErrLimitReached
// when the capacity is exhausted.
func (r *CouponRegistry) ReserveRedemptionSlot(ctx context.Context, tx database.TxQuerier, couponID uuid.UUID) (*Reservation, error) {
	count, err := r.repo.IncrementRedeemed(ctx, tx, couponID)
	if err != nil {
		return nil, err
	}
	return &Reservation{CouponID: couponID, RedeemedCount: count}, nil
}

// ComputeDiscount returns the discount the coupon grants on amount.
//
// Percentage coupons take value% of the amount, capped at
// MaxDiscountAmount when set, and require an amount. Fixed coupons grant
// their value, never more than the amount when one is given. A coupon with
// a minimum purchase also requires an amount.
// Returns ErrBelowMinimumPurchase when amount is under MinPurchaseAmount.
func (r *CouponRegistry) ComputeDiscount(c *model.Coupon, amount *model.Money) (model.Money, error) {
	if amount == nil && c.MinPurchaseAmount.IsPositive() {
		return model.Money{}, fmt.Errorf("transaction amount required for minimum purchase: %w", ErrInvalidRequest)
	}
	if amount != nil {
		if amount.IsNegative() {
			return model.Money{}, fmt.Errorf("negative transaction amount: %w", ErrInvalidRequest)
		}
		if amount.LessThan(c.MinPurchaseAmount.Decimal) {
			return model.Money{}, ErrBelowMinimumPurchase
		}
	}

	switch c.DiscountType {
	case model.DiscountPercentage:
		if amount == nil {
			return model.Money{}, fmt.Errorf("transaction amount required for percentage coupon: %w", ErrInvalidRequest)
		}
		discount := amount.Mul(c.DiscountValue.Decimal).Div(hundred)
		if c.MaxDiscountAmount != nil && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
		if discount.GreaterThan(amount.Decimal) {
			discount = amount.Decimal
		}
		return model.NewMoney(discount), nil
	case model.DiscountFixed:
		if amount != nil && c.DiscountValue.GreaterThan(amount.Decimal) {
			return model.NewMoney(amount.Decimal), nil
		}
		return model.NewMoney(c.DiscountValue.Decimal), nil
	default:
		return model.Money{}, fmt.Errorf("unknown discount type %q: %w", c.DiscountType, ErrInvalidRequest)
	}
}
