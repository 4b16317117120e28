package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/middleware"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
)

// errorMapping is the HTTP rendering of a service error.
type errorMapping struct {
	status  int
	code    string
	message string
}

// errorTable maps service errors to responses. Order matters: the first
// entry matched with errors.Is wins, so a not_found eligibility failure
// renders as coupon_not_found.
var errorTable = []struct {
	err  error
	mapping errorMapping
}{
	{service.ErrInvalidRequest, errorMapping{fiber.StatusBadRequest, "invalid_request", "invalid request"}},
	{service.ErrCouponNotFound, errorMapping{fiber.StatusNotFound, "coupon_not_found", "coupon not found"}},
	{service.ErrClaimNotFound, errorMapping{fiber.StatusNotFound, "claim_not_found", "claim not found"}},
	{service.ErrNotEligible, errorMapping{fiber.StatusUnprocessableEntity, "not_eligible", "coupon is not eligible"}},
	{service.ErrBelowMinimumPurchase, errorMapping{fiber.StatusUnprocessableEntity, "below_minimum_purchase", "transaction amount below minimum purchase"}},
	{service.ErrAlreadyClaimed, errorMapping{fiber.StatusConflict, "already_claimed", "coupon already claimed by customer"}},
	{service.ErrClaimNotActive, errorMapping{fiber.StatusConflict, "claim_not_active", "claim is not active"}},
	{service.ErrInvalidTransition, errorMapping{fiber.StatusConflict, "claim_not_active", "claim is not active"}},
	{service.ErrStoreConflict, errorMapping{fiber.StatusConflict, "store_conflict", "concurrent update, please retry"}},
	{service.ErrLimitReached, errorMapping{fiber.StatusGone, "limit_reached", "coupon redemption limit reached"}},
	{service.ErrInvalidOrExpired, errorMapping{fiber.StatusUnauthorized, "invalid_or_expired_code", "invalid or expired code"}},
	{service.ErrAttemptsExceeded, errorMapping{fiber.StatusLocked, "attempts_exceeded", "too many failed attempts"}},
	{service.ErrForbidden, errorMapping{fiber.StatusForbidden, "forbidden", "coupon belongs to another merchant"}},
	{service.ErrTooFrequent, errorMapping{fiber.StatusTooManyRequests, "too_frequent", "code requested too frequently"}},
}

var internalError = errorMapping{fiber.StatusInternalServerError, "internal_error", "internal server error"}

// lookupError returns the response for err. ok is false for errors that
// are not part of the service contract.
func lookupError(err error) (mapping errorMapping, ok bool) {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.mapping, true
		}
	}
	return internalError, false
}

// writeError renders err. Unknown errors are logged and become 500s.
func writeError(c *fiber.Ctx, err error, action string) error {
	mapping, ok := lookupError(err)
	if !ok {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("failed to " + action)
	}

	body := fiber.Map{"error": mapping.message, "code": mapping.code}
	if reason, found := service.EligibilityReasonOf(err); found && mapping.code == "not_eligible" {
		body["reason"] = string(reason)
	}
	return c.Status(mapping.status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "invalid_request"})
}

// formatValidationError converts validator errors to client-facing messages.
// Field names are the JSON names registered by internal/validator.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return "invalid request: " + field + " is required"
		case "notblank":
			return "invalid request: " + field + " cannot be whitespace only"
		case "max":
			return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
		case "uuid", "uuid4":
			return "invalid request: " + field + " must be a UUID"
		case "otpcode":
			return "invalid request: " + field + " must be 6 digits"
		default:
			return "invalid request: " + field + " is invalid"
		}
	}
	return "invalid request"
}

// parseUUIDParam reads a UUID route parameter.
func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}

func customerFrom(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != middleware.RoleCustomer || id.CustomerID == uuid.Nil {
		return uuid.Nil, false
	}
	return id.CustomerID, true
}

func merchantFrom(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != middleware.RoleMerchant || id.MerchantID == uuid.Nil {
		return uuid.Nil, false
	}
	return id.MerchantID, true
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity", "code": "unauthorized"})
}
