package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coupon-wallet/internal/middleware"
	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// mockCouponService is a mock implementation of CouponServiceInterface.
type mockCouponService struct {
	getClaimableFn func(ctx context.Context, couponID uuid.UUID) (*model.CouponResponse, error)
	validateFn     func(ctx context.Context, code string) (*model.ValidateCouponResponse, error)
}

func (m *mockCouponService) GetClaimable(ctx context.Context, couponID uuid.UUID) (*model.CouponResponse, error) {
	if m.getClaimableFn != nil {
		return m.getClaimableFn(ctx, couponID)
	}
	return nil, nil
}

func (m *mockCouponService) Validate(ctx context.Context, code string) (*model.ValidateCouponResponse, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, code)
	}
	return &model.ValidateCouponResponse{}, nil
}

// mockClaimService is a mock implementation of ClaimServiceInterface.
type mockClaimService struct {
	claimFn func(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
}

func (m *mockClaimService) Claim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, couponID, customerID)
	}
	return &model.ClaimedCoupon{ID: uuid.New(), CouponID: couponID, CustomerID: customerID, Status: model.ClaimActive}, nil
}

// mockWalletService is a mock implementation of WalletServiceInterface and
// RedemptionHistoryInterface.
type mockWalletService struct {
	listWalletFn      func(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error)
	getActiveClaimFn  func(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
	listRedemptionsFn func(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error)
}

func (m *mockWalletService) ListWallet(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error) {
	if m.listWalletFn != nil {
		return m.listWalletFn(ctx, customerID)
	}
	return nil, nil
}

func (m *mockWalletService) GetActiveClaim(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	if m.getActiveClaimFn != nil {
		return m.getActiveClaimFn(ctx, couponID, customerID)
	}
	return nil, nil
}

func (m *mockWalletService) ListRedemptions(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error) {
	if m.listRedemptionsFn != nil {
		return m.listRedemptionsFn(ctx, customerID)
	}
	return nil, nil
}

// mockRedemptionService is a mock implementation of RedemptionServiceInterface.
type mockRedemptionService struct {
	initiateFn func(ctx context.Context, claimID, merchantID uuid.UUID) (*model.InitiateRedemptionResponse, error)
	completeFn func(ctx context.Context, claimID, merchantID uuid.UUID, code string, amount *model.Money, meta model.RedemptionContext) (*model.Redemption, error)
}

func (m *mockRedemptionService) Initiate(ctx context.Context, claimID, merchantID uuid.UUID) (*model.InitiateRedemptionResponse, error) {
	if m.initiateFn != nil {
		return m.initiateFn(ctx, claimID, merchantID)
	}
	return &model.InitiateRedemptionResponse{ClaimID: claimID}, nil
}

func (m *mockRedemptionService) Complete(ctx context.Context, claimID, merchantID uuid.UUID, code string, amount *model.Money, meta model.RedemptionContext) (*model.Redemption, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, claimID, merchantID, code, amount, meta)
	}
	return &model.Redemption{ID: uuid.New(), ClaimID: claimID, MerchantID: merchantID}, nil
}

// asCustomer installs a fixed customer identity, standing in for Authenticate.
func asCustomer(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetIdentity(c, middleware.Identity{UserID: "user-1", Role: middleware.RoleCustomer, CustomerID: id})
		return c.Next()
	}
}

// asMerchant installs a fixed merchant identity, standing in for Authenticate.
func asMerchant(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetIdentity(c, middleware.Identity{UserID: "terminal-1", Role: middleware.RoleMerchant, MerchantID: id})
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}
