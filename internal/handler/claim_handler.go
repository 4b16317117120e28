package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// ClaimServiceInterface defines the interface for claim business logic.
type ClaimServiceInterface interface {
	Claim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
}

// ClaimHandler handles HTTP requests for claim operations.
type ClaimHandler struct {
	service   ClaimServiceInterface
	validator *validator.Validate
}

// NewClaimHandler creates a new ClaimHandler with the given service and validator.
func NewClaimHandler(svc ClaimServiceInterface, v *validator.Validate) *ClaimHandler {
	return &ClaimHandler{service: svc, validator: v}
}

// ClaimCoupon handles POST /api/wallet/claims requests to put a coupon in
// the caller's wallet.
func (h *ClaimHandler) ClaimCoupon(c *fiber.Ctx) error {
	customerID, ok := customerFrom(c)
	if !ok {
		return unauthenticated(c)
	}

	var req model.ClaimCouponRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	couponID, err := uuid.Parse(req.CouponID)
	if err != nil {
		return badRequest(c, "invalid request: coupon_id must be a UUID")
	}

	claim, err := h.service.Claim(c.Context(), couponID, customerID)
	if err != nil {
		return writeError(c, err, "claim coupon")
	}

	log.Info().
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("claim_id", claim.ID.String()).
		Str("coupon_id", couponID.String()).
		Str("customer_id", customerID.String()).
		Msg("coupon claimed successfully")

	return c.Status(fiber.StatusCreated).JSON(claim)
}
