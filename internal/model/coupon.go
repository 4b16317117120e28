package model

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType is the kind of discount a coupon grants.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CouponStatus is the merchant-controlled publication state of a coupon.
type CouponStatus string

const (
	CouponDraft   CouponStatus = "draft"
	CouponActive  CouponStatus = "active"
	CouponPaused  CouponStatus = "paused"
	CouponExpired CouponStatus = "expired"
	CouponDeleted CouponStatus = "deleted"
)

// Coupon is a merchant-issued discount definition together with its
// redemption counter.
type Coupon struct {
	ID                        uuid.UUID    `json:"id"`
	MerchantID                uuid.UUID    `json:"merchant_id"`
	Code                      string       `json:"code"`
	Title                     string       `json:"title"`
	DiscountType              DiscountType `json:"discount_type"`
	DiscountValue             Money        `json:"discount_value"`
	MinPurchaseAmount         Money        `json:"min_purchase_amount"`
	MaxDiscountAmount         *Money       `json:"max_discount_amount"`
	MaxRedemptions            *int         `json:"max_redemptions"`
	MaxRedemptionsPerCustomer int          `json:"max_redemptions_per_customer"`
	RedeemedCount             int          `json:"redeemed_count"`
	StartDate                 time.Time    `json:"start_date"`
	EndDate                   time.Time    `json:"end_date"`
	Status                    CouponStatus `json:"status"`
	CreatedAt                 time.Time    `json:"-"`
}

// PerCustomerLimit returns MaxRedemptionsPerCustomer, treating unset values
// as the default of 1.
func (c *Coupon) PerCustomerLimit() int {
	if c.MaxRedemptionsPerCustomer < 1 {
		return 1
	}
	return c.MaxRedemptionsPerCustomer
}

// Exhausted reports whether every redemption slot has been consumed.
func (c *Coupon) Exhausted() bool {
	return c.MaxRedemptions != nil && c.RedeemedCount >= *c.MaxRedemptions
}

// CouponResponse is the API response DTO for GET /api/coupons/:id
type CouponResponse struct {
	*Coupon
	RemainingRedemptions *int `json:"remaining_redemptions"`
}

// NewCouponResponse builds the public view of a coupon.
func NewCouponResponse(c *Coupon) *CouponResponse {
	resp := &CouponResponse{Coupon: c}
	if c.MaxRedemptions != nil {
		remaining := *c.MaxRedemptions - c.RedeemedCount
		if remaining < 0 {
			remaining = 0
		}
		resp.RemainingRedemptions = &remaining
	}
	return resp
}

// ValidateCouponRequest is the DTO for checking a coupon by its code
type ValidateCouponRequest struct {
	Code string `json:"code" validate:"required,notblank,max=64"`
}

// ValidateCouponResponse reports whether a coupon code is currently usable.
type ValidateCouponResponse struct {
	Valid  bool            `json:"valid"`
	Reason string          `json:"reason,omitempty"`
	Coupon *CouponResponse `json:"coupon,omitempty"`
}
