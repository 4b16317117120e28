package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

func newTestRegistry(repo CouponRepositoryInterface) *CouponRegistry {
	return NewCouponRegistry(repo).WithClock(fixedClock)
}

func TestCouponRegistry_GetClaimable_Active(t *testing.T) {
	coupon := activeCoupon()
	repo := &mockCouponRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
			return coupon, nil
		},
	}

	got, err := newTestRegistry(repo).GetClaimable(context.Background(), coupon.ID)

	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)
}

func TestCouponRegistry_GetClaimable_Reasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *model.Coupon) *model.Coupon
		reason EligibilityReason
	}{
		{
			name:   "missing coupon",
			mutate: func(c *model.Coupon) *model.Coupon { return nil },
			reason: ReasonNotFound,
		},
		{
			name: "deleted coupon",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.Status = model.CouponDeleted
				return c
			},
			reason: ReasonNotFound,
		},
		{
			name: "draft coupon",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.Status = model.CouponDraft
				return c
			},
			reason: ReasonInactive,
		},
		{
			name: "paused coupon",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.Status = model.CouponPaused
				return c
			},
			reason: ReasonInactive,
		},
		{
			name: "expired status",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.Status = model.CouponExpired
				return c
			},
			reason: ReasonExpired,
		},
		{
			name: "before start date",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.StartDate = fixedNow.Add(time.Minute)
				return c
			},
			reason: ReasonNotStarted,
		},
		{
			name: "exactly at end date",
			mutate: func(c *model.Coupon) *model.Coupon {
				c.EndDate = fixedNow
				return c
			},
			reason: ReasonExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon := tt.mutate(activeCoupon())
			repo := &mockCouponRepository{
				getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
					return coupon, nil
				},
			}

			got, err := newTestRegistry(repo).GetClaimable(context.Background(), uuid.New())

			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrNotEligible), "should match ErrNotEligible")
			reason, ok := EligibilityReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCouponRegistry_GetClaimable_StartDateInclusive(t *testing.T) {
	coupon := activeCoupon()
	coupon.StartDate = fixedNow
	repo := &mockCouponRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
			return coupon, nil
		},
	}

	_, err := newTestRegistry(repo).GetClaimable(context.Background(), coupon.ID)

	require.NoError(t, err)
}

func TestCouponRegistry_GetClaimable_RepositoryError(t *testing.T) {
	repo := &mockCouponRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := newTestRegistry(repo).GetClaimable(context.Background(), uuid.New())

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotEligible))
}

func TestCouponRegistry_Get_NotFound(t *testing.T) {
	registry := newTestRegistry(&mockCouponRepository{})

	_, err := registry.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestCouponRegistry_ValidateCode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		coupon := activeCoupon()
		var gotCode string
		repo := &mockCouponRepository{
			getByCodeFn: func(ctx context.Context, code string) (*model.Coupon, error) {
				gotCode = code
				return coupon, nil
			},
		}

		got, err := newTestRegistry(repo).ValidateCode(context.Background(), "  SPRING10 ")

		require.NoError(t, err)
		assert.Equal(t, coupon, got)
		assert.Equal(t, "SPRING10", gotCode, "code should be trimmed")
	})

	t.Run("blank code", func(t *testing.T) {
		_, err := newTestRegistry(&mockCouponRepository{}).ValidateCode(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := newTestRegistry(&mockCouponRepository{}).ValidateCode(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("exhausted", func(t *testing.T) {
		coupon := activeCoupon()
		coupon.MaxRedemptions = intPtr(3)
		coupon.RedeemedCount = 3
		repo := &mockCouponRepository{
			getByCodeFn: func(ctx context.Context, code string) (*model.Coupon, error) {
				return coupon, nil
			},
		}

		got, err := newTestRegistry(repo).ValidateCode(context.Background(), "SPRING10")

		assert.ErrorIs(t, err, ErrLimitReached)
		assert.Equal(t, coupon, got)
	})
}

func TestCouponRegistry_ReserveRedemptionSlot(t *testing.T) {
	couponID := uuid.New()
	tx := &mockTx{}
	var gotTx database.TxQuerier
	repo := &mockCouponRepository{
		incrementRedeemedFn: func(ctx context.Context, q database.TxQuerier, id uuid.UUID) (int, error) {
			gotTx = q
			assert.Equal(t, couponID, id)
			return 4, nil
		},
	}

	res, err := newTestRegistry(repo).ReserveRedemptionSlot(context.Background(), tx, couponID)

	require.NoError(t, err)
	assert.Equal(t, 4, res.RedeemedCount)
	assert.Same(t, tx, gotTx, "slot must be reserved inside the caller's transaction")
}

func TestCouponRegistry_ReserveRedemptionSlot_LimitReached(t *testing.T) {
	repo := &mockCouponRepository{
		incrementRedeemedFn: func(ctx context.Context, q database.TxQuerier, id uuid.UUID) (int, error) {
			return 0, ErrLimitReached
		},
	}

	res, err := newTestRegistry(repo).ReserveRedemptionSlot(context.Background(), &mockTx{}, uuid.New())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestCouponRegistry_ComputeDiscount(t *testing.T) {
	percentage := func(value string, maxDiscount *model.Money) *model.Coupon {
		c := activeCoupon()
		c.DiscountType = model.DiscountPercentage
		c.DiscountValue = model.MustMoney(value)
		c.MaxDiscountAmount = maxDiscount
		return c
	}
	fixed := func(value, minPurchase string) *model.Coupon {
		c := activeCoupon()
		c.DiscountValue = model.MustMoney(value)
		c.MinPurchaseAmount = model.MustMoney(minPurchase)
		return c
	}

	tests := []struct {
		name    string
		coupon  *model.Coupon
		amount  *model.Money
		want    string
		wantErr error
	}{
		{name: "percentage", coupon: percentage("15", nil), amount: moneyPtr("80.00"), want: "12.00"},
		{name: "percentage rounds to cents", coupon: percentage("12.5", nil), amount: moneyPtr("9.99"), want: "1.25"},
		{name: "percentage capped", coupon: percentage("50", moneyPtr("20.00")), amount: moneyPtr("100.00"), want: "20.00"},
		{name: "percentage over 100 capped at amount", coupon: percentage("150", nil), amount: moneyPtr("40.00"), want: "40.00"},
		{name: "percentage without amount", coupon: percentage("10", nil), amount: nil, wantErr: ErrInvalidRequest},
		{name: "fixed", coupon: fixed("10.00", "0"), amount: moneyPtr("35.00"), want: "10.00"},
		{name: "fixed without amount", coupon: fixed("10.00", "0"), amount: nil, want: "10.00"},
		{name: "fixed capped at amount", coupon: fixed("10.00", "0"), amount: moneyPtr("6.50"), want: "6.50"},
		{name: "minimum met exactly", coupon: fixed("5.00", "50.00"), amount: moneyPtr("50.00"), want: "5.00"},
		{name: "minimum without amount", coupon: fixed("5.00", "50.00"), amount: nil, wantErr: ErrInvalidRequest},
		{name: "below minimum", coupon: fixed("5.00", "50.00"), amount: moneyPtr("49.99"), wantErr: ErrBelowMinimumPurchase},
		{name: "negative amount", coupon: fixed("5.00", "0"), amount: moneyPtr("-1.00"), wantErr: ErrInvalidRequest},
	}

	registry := newTestRegistry(&mockCouponRepository{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.ComputeDiscount(tt.coupon, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
