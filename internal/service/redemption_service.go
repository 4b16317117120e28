package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RedemptionRepositoryInterface defines the interface for redemption data access.
type RedemptionRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, r *model.Redemption) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error)
}

// Dispatcher delivers a message to a recipient out of band. Delivery is
// fire-and-forget: a failed send never undoes the operation that caused it.
type Dispatcher interface {
	Send(ctx context.Context, recipient, message string) error
}

// RedemptionService runs the two-phase, OTP-gated redemption of a claimed
// coupon at point of sale.
type RedemptionService struct {
	pool        TxBeginner
	registry    *CouponRegistry
	ledger      *WalletLedger
	otp         *OTPManager
	redemptions RedemptionRepositoryInterface
	dispatcher  Dispatcher
	returnCode  bool
	now         func() time.Time
}

// NewRedemptionService creates a new RedemptionService with the given pool.
func NewRedemptionService(pool *pgxpool.Pool, registry *CouponRegistry, ledger *WalletLedger, otp *OTPManager, redemptions RedemptionRepositoryInterface, dispatcher Dispatcher) *RedemptionService {
	return NewRedemptionServiceWithTxBeginner(pool, registry, ledger, otp, redemptions, dispatcher)
}

// NewRedemptionServiceWithTxBeginner creates a RedemptionService with a custom TxBeginner.
// Primarily used for testing.
func NewRedemptionServiceWithTxBeginner(pool TxBeginner, registry *CouponRegistry, ledger *WalletLedger, otp *OTPManager, redemptions RedemptionRepositoryInterface, dispatcher Dispatcher) *RedemptionService {
	return &RedemptionService{
		pool:        pool,
		registry:    registry,
		ledger:      ledger,
		otp:         otp,
		redemptions: redemptions,
		dispatcher:  dispatcher,
		now:         time.Now,
	}
}

// WithReturnCode makes Initiate hand the code back to the caller instead of
// dispatching it, for same-device flows.
func (s *RedemptionService) WithReturnCode(enabled bool) *RedemptionService {
	s.returnCode = enabled
	return s
}

// WithClock replaces the time source. Primarily used for testing.
func (s *RedemptionService) WithClock(now func() time.Time) *RedemptionService {
	s.now = now
	return s
}

// Initiate starts redeeming a claim: it checks the claim is active and the
// coupon belongs to merchantID, then issues a redemption OTP bound to the
// claim.
// Returns:
//   - ErrClaimNotActive if the claim is missing, redeemed or expired
//   - ErrForbidden if the coupon belongs to another merchant
//   - ErrTooFrequent if a code was issued for this claim very recently
func (s *RedemptionService) Initiate(ctx context.Context, claimID, merchantID uuid.UUID) (*model.InitiateRedemptionResponse, error) {
	claim, err := s.ledger.GetClaim(ctx, claimID)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}
	if claim.Status != model.ClaimActive {
		return nil, ErrClaimNotActive
	}

	coupon, err := s.registry.Get(ctx, claim.CouponID)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}
	if coupon.MerchantID != merchantID {
		return nil, ErrForbidden
	}
	if err := s.registry.CheckEligible(coupon); err != nil {
		return nil, err
	}

	issue, err := s.otp.Issue(ctx, claimID.String(), model.OTPRedemption)
	if err != nil {
		return nil, err
	}

	resp := &model.InitiateRedemptionResponse{ClaimID: claimID, ExpiresAt: issue.ExpiresAt}
	if s.returnCode {
		resp.Code = issue.Code
	} else {
		msg := fmt.Sprintf("Your code to redeem %q is %s. It expires at %s.",
			coupon.Title, issue.Code, issue.ExpiresAt.Format(time.Kitchen+" MST"))
		s.dispatch(ctx, claim.CustomerID.String(), msg)
	}

	log.Info().
		Str("claim_id", claimID.String()).
		Str("merchant_id", merchantID.String()).
		Msg("redemption initiated")
	return resp, nil
}

// Complete verifies the OTP and redeems the claim.
//
// A verified code is spent even if a later step fails. The claim status
// change, the slot reservation and the redemption record commit together or
// not at all; the slot reservation is the last check before commit.
// Returns:
//   - ErrForbidden if the coupon belongs to another merchant
//   - ErrInvalidOrExpired or ErrAttemptsExceeded from OTP verification
//   - ErrClaimNotActive if the claim is already redeemed or expired
//   - an *EligibilityError if the coupon left its window meanwhile
//   - ErrBelowMinimumPurchase if amount is under the coupon minimum
//   - ErrLimitReached if every redemption slot is taken
//   - ErrStoreConflict if the store aborted the transaction under contention
func (s *RedemptionService) Complete(ctx context.Context, claimID, merchantID uuid.UUID, code string, amount *model.Money, meta model.RedemptionContext) (*model.Redemption, error) {
	// 0. Ownership and status, without spending the code. An unknown claim
	// falls through to verification, which fails the same way as a wrong code.
	if claim, err := s.ledger.GetClaim(ctx, claimID); err == nil {
		coupon, err := s.registry.Get(ctx, claim.CouponID)
		if err == nil && coupon.MerchantID != merchantID {
			return nil, ErrForbidden
		}
		if claim.Status != model.ClaimActive {
			return nil, ErrClaimNotActive
		}
	} else if !errors.Is(err, ErrClaimNotFound) {
		return nil, err
	}

	// 1. Spend the code
	if err := s.otp.Verify(ctx, claimID.String(), code, model.OTPRedemption); err != nil {
		return nil, err
	}

	// 2. Re-validate, time may have passed since Initiate
	claim, err := s.ledger.GetClaim(ctx, claimID)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}
	if claim.Status != model.ClaimActive {
		return nil, ErrClaimNotActive
	}
	coupon, err := s.registry.Get(ctx, claim.CouponID)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}
	if coupon.MerchantID != merchantID {
		return nil, ErrForbidden
	}
	if err := s.registry.CheckEligible(coupon); err != nil {
		return nil, err
	}

	discount, err := s.registry.ComputeDiscount(coupon, amount)
	if err != nil {
		return nil, err
	}

	redemption := &model.Redemption{
		ID:                 uuid.New(),
		ClaimID:            claim.ID,
		CouponID:           coupon.ID,
		CustomerID:         claim.CustomerID,
		MerchantID:         merchantID,
		TransactionAmount:  amount,
		DiscountAmount:     discount,
		VerificationMethod: model.VerificationQROTP,
		OTPVerified:        true,
		DeviceInfo:         meta.DeviceInfo,
		IPAddress:          meta.IPAddress,
		RedeemedAt:         s.now().UTC(),
	}

	if err := s.commitRedemption(ctx, redemption); err != nil {
		return nil, err
	}

	log.Info().
		Str("redemption_id", redemption.ID.String()).
		Str("claim_id", claimID.String()).
		Str("coupon_id", coupon.ID.String()).
		Str("discount", discount.String()).
		Msg("coupon redeemed")

	s.dispatch(ctx, claim.CustomerID.String(),
		fmt.Sprintf("You redeemed %q and saved %s.", coupon.Title, discount.String()))
	return redemption, nil
}

func (s *RedemptionService) commitRedemption(ctx context.Context, r *model.Redemption) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Claim active -> redeemed, loses to any concurrent redemption of the same claim
	if err := s.ledger.MarkRedeemed(ctx, tx, r.ClaimID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return ErrClaimNotActive
		}
		return err
	}

	// 2. Take a slot
	if _, err := s.registry.ReserveRedemptionSlot(ctx, tx, r.CouponID); err != nil {
		if errors.Is(err, ErrLimitReached) {
			return ErrLimitReached
		}
		return fmt.Errorf("reserve redemption slot: %w", err)
	}

	// 3. Record
	if err := s.redemptions.Insert(ctx, tx, r); err != nil {
		if errors.Is(err, ErrClaimNotActive) {
			return ErrClaimNotActive
		}
		return fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if database.IsConflict(err) {
			return fmt.Errorf("commit redemption: %w", ErrStoreConflict)
		}
		return fmt.Errorf("commit redemption: %w", err)
	}
	return nil
}

// ListRedemptions returns a customer's redemption history.
func (s *RedemptionService) ListRedemptions(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error) {
	redemptions, err := s.redemptions.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}

func (s *RedemptionService) dispatch(ctx context.Context, recipient, message string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Send(ctx, recipient, message); err != nil {
		log.Warn().Err(err).Str("recipient", recipient).Msg("notification dispatch failed")
	}
}
