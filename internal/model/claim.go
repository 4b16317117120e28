package model

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the lifecycle state of a wallet entry.
type ClaimStatus string

const (
	ClaimActive   ClaimStatus = "active"
	ClaimRedeemed ClaimStatus = "redeemed"
	ClaimExpired  ClaimStatus = "expired"
)

// CanTransitionTo reports whether moving from s to next is a legal
// transition. Only active claims move, and only to a terminal state.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	return s == ClaimActive && (next == ClaimRedeemed || next == ClaimExpired)
}

// Terminal reports whether no transition leaves s.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimRedeemed || s == ClaimExpired
}

// ClaimedCoupon is a coupon held in a customer's wallet.
type ClaimedCoupon struct {
	ID         uuid.UUID   `json:"id"`
	CouponID   uuid.UUID   `json:"coupon_id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	Seq        int         `json:"-"`
	Status     ClaimStatus `json:"status"`
	ClaimedAt  time.Time   `json:"claimed_at"`
}

// WalletEntry is a claim joined with the coupon it refers to.
type WalletEntry struct {
	ClaimedCoupon
	Coupon Coupon `json:"coupon"`
}

// ClaimCouponRequest is the DTO for claiming a coupon
type ClaimCouponRequest struct {
	CouponID string `json:"coupon_id" validate:"required,uuid"`
}
