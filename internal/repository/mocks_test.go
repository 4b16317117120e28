package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

// mockRows implements pgx.Rows for testing. scanFn receives the index of
// the current row.
type mockRows struct {
	n         int
	index     int
	scanFn    func(i int, dest ...any) error
	errOnRows error
	closed    bool
}

func (m *mockRows) Close() { m.closed = true }

func (m *mockRows) Err() error {
	return m.errOnRows
}

func (m *mockRows) Next() bool {
	if m.index < m.n {
		m.index++
		return true
	}
	return false
}

func (m *mockRows) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(m.index-1, dest...)
	}
	return nil
}

func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// mockPool implements PoolInterface, ClaimPoolInterface and
// RedemptionPoolInterface for testing. It also satisfies database.TxQuerier.
type mockPool struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func errRow(err error) pgx.Row {
	return &mockRow{scanFn: func(dest ...any) error { return err }}
}

// fillCoupon writes c into the destinations of scanCoupon, in column order.
func fillCoupon(dest []any, c *model.Coupon) {
	*(dest[0].(*uuid.UUID)) = c.ID
	*(dest[1].(*uuid.UUID)) = c.MerchantID
	*(dest[2].(*string)) = c.Code
	*(dest[3].(*string)) = c.Title
	*(dest[4].(*model.DiscountType)) = c.DiscountType
	*(dest[5].(*model.Money)) = c.DiscountValue
	*(dest[6].(*model.Money)) = c.MinPurchaseAmount
	*(dest[7].(**model.Money)) = c.MaxDiscountAmount
	*(dest[8].(**int)) = c.MaxRedemptions
	*(dest[9].(*int)) = c.MaxRedemptionsPerCustomer
	*(dest[10].(*int)) = c.RedeemedCount
	*(dest[11].(*time.Time)) = c.StartDate
	*(dest[12].(*time.Time)) = c.EndDate
	*(dest[13].(*model.CouponStatus)) = c.Status
	*(dest[14].(*time.Time)) = c.CreatedAt
}
