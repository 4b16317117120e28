package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// CouponServiceInterface defines the interface for public coupon lookups.
type CouponServiceInterface interface {
	GetClaimable(ctx context.Context, couponID uuid.UUID) (*model.CouponResponse, error)
	Validate(ctx context.Context, code string) (*model.ValidateCouponResponse, error)
}

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	service   CouponServiceInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given service and validator.
func NewCouponHandler(svc CouponServiceInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// GetCoupon handles GET /api/coupons/:id requests. Only coupons that can be
// claimed right now are returned; others answer with their eligibility reason.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid request: id must be a UUID")
	}

	coupon, err := h.service.GetClaimable(c.Context(), id)
	if err != nil {
		return writeError(c, err, "get coupon")
	}

	log.Debug().
		Str("coupon_id", coupon.ID.String()).
		Int("redeemed_count", coupon.RedeemedCount).
		Msg("coupon retrieved")

	return c.JSON(coupon)
}

// ValidateCoupon handles POST /api/coupons/validate. An unusable code is
// still a 200 with valid=false and the reason.
func (h *CouponHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req model.ValidateCouponRequest

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.Validate(c.Context(), req.Code)
	if err != nil {
		return writeError(c, err, "validate coupon")
	}
	return c.JSON(resp)
}
