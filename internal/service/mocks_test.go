package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	getByCodeFn         func(ctx context.Context, code string) (*model.Coupon, error)
	incrementRedeemedFn func(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (int, error)
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockCouponRepository) IncrementRedeemed(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (int, error) {
	if m.incrementRedeemedFn != nil {
		return m.incrementRedeemedFn(ctx, tx, id)
	}
	return 1, nil
}

// mockClaimRepository is a mock implementation of ClaimRepositoryInterface.
type mockClaimRepository struct {
	countActiveFn    func(ctx context.Context, couponID, customerID uuid.UUID) (int, error)
	insertFn         func(ctx context.Context, claim *model.ClaimedCoupon, limit int) error
	getByIDFn        func(ctx context.Context, id uuid.UUID) (*model.ClaimedCoupon, error)
	findActiveFn     func(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error)
	updateStatusFn   func(ctx context.Context, tx database.TxQuerier, id uuid.UUID, from, to model.ClaimStatus) (bool, error)
	listByCustomerFn func(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error)
	listExpirableFn  func(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

func (m *mockClaimRepository) CountActive(ctx context.Context, couponID, customerID uuid.UUID) (int, error) {
	if m.countActiveFn != nil {
		return m.countActiveFn(ctx, couponID, customerID)
	}
	return 0, nil
}

func (m *mockClaimRepository) Insert(ctx context.Context, claim *model.ClaimedCoupon, limit int) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, claim, limit)
	}
	return nil
}

func (m *mockClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ClaimedCoupon, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockClaimRepository) FindActive(ctx context.Context, couponID, customerID uuid.UUID) (*model.ClaimedCoupon, error) {
	if m.findActiveFn != nil {
		return m.findActiveFn(ctx, couponID, customerID)
	}
	return nil, nil
}

func (m *mockClaimRepository) UpdateStatus(ctx context.Context, tx database.TxQuerier, id uuid.UUID, from, to model.ClaimStatus) (bool, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, tx, id, from, to)
	}
	return true, nil
}

func (m *mockClaimRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.WalletEntry, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, customerID)
	}
	return []model.WalletEntry{}, nil
}

func (m *mockClaimRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if m.listExpirableFn != nil {
		return m.listExpirableFn(ctx, now, limit)
	}
	return []uuid.UUID{}, nil
}

// mockRedemptionRepository is a mock implementation of RedemptionRepositoryInterface.
type mockRedemptionRepository struct {
	insertFn         func(ctx context.Context, tx database.TxQuerier, r *model.Redemption) error
	listByCustomerFn func(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error)
}

func (m *mockRedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, r *model.Redemption) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, r)
	}
	return nil
}

func (m *mockRedemptionRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Redemption, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, customerID)
	}
	return []model.Redemption{}, nil
}

// memOTPRepository is an in-memory OTPRepositoryInterface with the same
// guarded-update semantics as the SQL repository.
type memOTPRepository struct {
	mu         sync.Mutex
	challenges []*model.OTPChallenge
	insertErr  error
}

func (m *memOTPRepository) Insert(ctx context.Context, c *model.OTPChallenge) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.challenges = append(m.challenges, &cp)
	return nil
}

func (m *memOTPRepository) ListOutstanding(ctx context.Context, identifier string, purpose model.OTPPurpose, now time.Time) ([]model.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.OTPChallenge{}
	for i := len(m.challenges) - 1; i >= 0; i-- {
		c := m.challenges[i]
		if c.Identifier == identifier && c.Purpose == purpose && !c.IsUsed && c.ExpiresAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memOTPRepository) MarkUsed(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.challenges {
		if c.ID == id {
			if c.IsUsed || c.Attempts >= maxAttempts || !c.ExpiresAt.After(now) {
				return false, nil
			}
			c.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memOTPRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.challenges {
		if c.ID == id && !c.IsUsed {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, ErrInvalidOrExpired
}

// mockThrottle is a mock implementation of Throttle.
type mockThrottle struct {
	allowFn func(ctx context.Context, key string, interval time.Duration) (bool, error)
}

func (m *mockThrottle) Allow(ctx context.Context, key string, interval time.Duration) (bool, error) {
	if m.allowFn != nil {
		return m.allowFn(ctx, key, interval)
	}
	return true, nil
}

// mockDispatcher records every message sent.
type mockDispatcher struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (m *mockDispatcher) Send(ctx context.Context, recipient, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recipient+": "+message)
	return m.sendErr
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func intPtr(i int) *int {
	return &i
}

func moneyPtr(s string) *model.Money {
	m := model.MustMoney(s)
	return &m
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// activeCoupon returns a coupon that is active and inside its window at fixedNow.
func activeCoupon() *model.Coupon {
	return &model.Coupon{
		ID:                        uuid.New(),
		MerchantID:                uuid.New(),
		Code:                      "SPRING10",
		Title:                     "Spring sale",
		DiscountType:              model.DiscountFixed,
		DiscountValue:             model.MustMoney("10.00"),
		MaxRedemptionsPerCustomer: 1,
		StartDate:                 fixedNow.Add(-24 * time.Hour),
		EndDate:                   fixedNow.Add(24 * time.Hour),
		Status:                    model.CouponActive,
	}
}
