package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationMethod records how a redemption was authorised.
type VerificationMethod string

const (
	VerificationQROTP  VerificationMethod = "qr_otp"
	VerificationCode   VerificationMethod = "code"
	VerificationManual VerificationMethod = "manual"
)

// Redemption is the immutable record of a coupon consumed at point of sale.
type Redemption struct {
	ID                 uuid.UUID          `json:"id"`
	ClaimID            uuid.UUID          `json:"claim_id"`
	CouponID           uuid.UUID          `json:"coupon_id"`
	CustomerID         uuid.UUID          `json:"customer_id"`
	MerchantID         uuid.UUID          `json:"merchant_id"`
	TransactionAmount  *Money             `json:"transaction_amount"`
	DiscountAmount     Money              `json:"discount_amount"`
	VerificationMethod VerificationMethod `json:"verification_method"`
	OTPVerified        bool               `json:"otp_verified"`
	DeviceInfo         string             `json:"-"`
	IPAddress          string             `json:"-"`
	RedeemedAt         time.Time          `json:"redeemed_at"`
}

// RedemptionContext carries request metadata stored alongside a redemption.
type RedemptionContext struct {
	DeviceInfo string
	IPAddress  string
}

// InitiateRedemptionRequest is the DTO for starting a redemption
type InitiateRedemptionRequest struct {
	ClaimID string `json:"claim_id" validate:"required,uuid"`
}

// InitiateRedemptionResponse tells the terminal a code is outstanding.
// Code is only populated for same-device flows.
type InitiateRedemptionResponse struct {
	ClaimID   uuid.UUID `json:"claim_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}

// CompleteRedemptionRequest is the DTO for finishing a redemption
type CompleteRedemptionRequest struct {
	ClaimID           string `json:"claim_id" validate:"required,uuid"`
	Code              string `json:"code" validate:"required,otpcode"`
	TransactionAmount *Money `json:"transaction_amount"`
}
