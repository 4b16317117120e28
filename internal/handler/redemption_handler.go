package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// maxDeviceInfoLength bounds the User-Agent stored with a redemption.
const maxDeviceInfoLength = 255

// RedemptionServiceInterface defines the point-of-sale redemption flow.
type RedemptionServiceInterface interface {
	Initiate(ctx context.Context, claimID, merchantID uuid.UUID) (*model.InitiateRedemptionResponse, error)
	Complete(ctx context.Context, claimID, merchantID uuid.UUID, code string, amount *model.Money, meta model.RedemptionContext) (*model.Redemption, error)
}

// RedemptionHandler handles merchant terminal requests.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v}
}

// Initiate handles POST /api/redemptions/initiate. The customer receives a
// one-time code; the response carries it only for same-device flows.
func (h *RedemptionHandler) Initiate(c *fiber.Ctx) error {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return unauthenticated(c)
	}

	var req model.InitiateRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	claimID, err := uuid.Parse(req.ClaimID)
	if err != nil {
		return badRequest(c, "invalid request: claim_id must be a UUID")
	}

	resp, err := h.service.Initiate(c.Context(), claimID, merchantID)
	if err != nil {
		return writeError(c, err, "initiate redemption")
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Complete handles POST /api/redemptions/complete.
func (h *RedemptionHandler) Complete(c *fiber.Ctx) error {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return unauthenticated(c)
	}

	var req model.CompleteRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	claimID, err := uuid.Parse(req.ClaimID)
	if err != nil {
		return badRequest(c, "invalid request: claim_id must be a UUID")
	}

	meta := model.RedemptionContext{
		DeviceInfo: truncate(c.Get(fiber.HeaderUserAgent), maxDeviceInfoLength),
		IPAddress:  c.IP(),
	}
	redemption, err := h.service.Complete(c.Context(), claimID, merchantID, req.Code, req.TransactionAmount, meta)
	if err != nil {
		return writeError(c, err, "complete redemption")
	}
	return c.Status(fiber.StatusCreated).JSON(redemption)
}

// truncate returns a copy of s cut to n bytes. Header values are only
// valid for the lifetime of the request, so the result never aliases s.
func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.Clone(s)
}
