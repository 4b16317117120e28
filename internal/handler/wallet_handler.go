package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// WalletServiceInterface defines the wallet reads.
type WalletServiceInterface interface {
	ListWallet(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error)
	GetActiveClaim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
}

// RedemptionHistoryInterface defines the redemption history read.
type RedemptionHistoryInterface interface {
	ListRedemptions(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error)
}

// WalletHandler serves the caller's own wallet.
type WalletHandler struct {
	wallet  WalletServiceInterface
	history RedemptionHistoryInterface
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet WalletServiceInterface, history RedemptionHistoryInterface) *WalletHandler {
	return &WalletHandler{wallet: wallet, history: history}
}

// ListWallet handles GET /api/wallet.
func (h *WalletHandler) ListWallet(c *fiber.Ctx) error {
	customerID, ok := customerFrom(c)
	if !ok {
		return unauthenticated(c)
	}

	entries, err := h.wallet.ListWallet(c.Context(), customerID)
	if err != nil {
		return writeError(c, err, "list wallet")
	}
	if entries == nil {
		entries = []model.WalletEntry{}
	}
	return c.JSON(fiber.Map{"claims": entries})
}

// GetActiveClaim handles GET /api/wallet/claims/:couponId.
func (h *WalletHandler) GetActiveClaim(c *fiber.Ctx) error {
	customerID, ok := customerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	couponID, err := parseUUIDParam(c, "couponId")
	if err != nil {
		return badRequest(c, "invalid request: couponId must be a UUID")
	}

	claim, err := h.wallet.GetActiveClaim(c.Context(), couponID, customerID)
	if err != nil {
		return writeError(c, err, "get active claim")
	}
	return c.JSON(claim)
}

// ListRedemptions handles GET /api/wallet/redemptions.
func (h *WalletHandler) ListRedemptions(c *fiber.Ctx) error {
	customerID, ok := customerFrom(c)
	if !ok {
		return unauthenticated(c)
	}

	redemptions, err := h.history.ListRedemptions(c.Context(), customerID)
	if err != nil {
		return writeError(c, err, "list redemptions")
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}
	return c.JSON(fiber.Map{"redemptions": redemptions})
}
