package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrClaimNotFound is returned when a claim cannot be found
	ErrClaimNotFound = errors.New("claim not found")

	// ErrNotEligible is returned when a coupon's status or validity window
	// rules out the operation. Concrete errors are *EligibilityError.
	ErrNotEligible = errors.New("coupon not eligible")

	// ErrAlreadyClaimed is returned when a customer has reached the per-customer claim limit
	ErrAlreadyClaimed = errors.New("coupon already claimed by customer")

	// ErrLimitReached is returned when every redemption slot of a coupon is consumed
	ErrLimitReached = errors.New("coupon redemption limit reached")

	// ErrBelowMinimumPurchase is returned when the transaction amount is under the coupon minimum
	ErrBelowMinimumPurchase = errors.New("transaction amount below minimum purchase")

	// ErrInvalidOrExpired is returned for any OTP that does not verify. It
	// deliberately does not distinguish unknown identifiers from wrong codes.
	ErrInvalidOrExpired = errors.New("invalid or expired code")

	// ErrAttemptsExceeded is returned once an OTP challenge is locked by failed attempts
	ErrAttemptsExceeded = errors.New("too many failed attempts")

	// ErrTooFrequent is returned when a code is requested again inside the resend interval
	ErrTooFrequent = errors.New("code requested too frequently")

	// ErrClaimNotActive is returned when a claim is already redeemed or expired
	ErrClaimNotActive = errors.New("claim is not active")

	// ErrInvalidTransition is returned when a claim status change is not allowed
	ErrInvalidTransition = errors.New("invalid claim status transition")

	// ErrForbidden is returned when a merchant acts on a coupon it does not own
	ErrForbidden = errors.New("coupon belongs to another merchant")

	// ErrStoreConflict is returned when the store aborted a write due to
	// concurrent contention. Retrying the same call is safe.
	ErrStoreConflict = errors.New("concurrent update conflict")
)

// EligibilityReason explains why a coupon is not eligible.
type EligibilityReason string

const (
	ReasonNotFound   EligibilityReason = "not_found"
	ReasonInactive   EligibilityReason = "inactive"
	ReasonNotStarted EligibilityReason = "not_started"
	ReasonExpired    EligibilityReason = "expired"
)

// EligibilityError is a NotEligible failure carrying its reason subcode.
type EligibilityError struct {
	Reason EligibilityReason
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotEligible.Error(), e.Reason)
}

// Is makes errors.Is(err, ErrNotEligible) match every reason. A not_found
// eligibility error also matches ErrCouponNotFound.
func (e *EligibilityError) Is(target error) bool {
	if target == ErrNotEligible {
		return true
	}
	return target == ErrCouponNotFound && e.Reason == ReasonNotFound
}

func notEligible(reason EligibilityReason) error {
	return &EligibilityError{Reason: reason}
}

// EligibilityReasonOf extracts the reason subcode from err, if any.
func EligibilityReasonOf(err error) (EligibilityReason, bool) {
	var ee *EligibilityError
	if errors.As(err, &ee) {
		return ee.Reason, true
	}
	return "", false
}
