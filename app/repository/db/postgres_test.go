package db

import (
	"context"
	"database/sql"
	"inventory-service/app/domain"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to INVENTORY_TEST_DSN; the suite is skipped without it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("INVENTORY_TEST_DSN")
	if dsn == "" {
		t.Skip("INVENTORY_TEST_DSN not set")
	}
	conn, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(context.Background(), conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func uniqueID(prefix string) string {
	return prefix + "-" + uuid.Must(uuid.NewV4()).String()
}

func TestPostgres_StockVersioningAndRollback(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	stocks := NewStockRepository(conn)
	movements := NewMovementRepository(conn)
	tx := NewTransactor(conn)
	productID := uniqueID("p")
	now := time.Now().UTC().Truncate(time.Microsecond)

	level := domain.StockLevel{ProductID: productID, LowStockThreshold: 2, CreatedAt: now}
	level.Apply(5, 0, now)
	require.NoError(t, stocks.Create(ctx, &level))
	assert.Equal(t, int64(1), level.Version)
	assert.ErrorIs(t, stocks.Create(ctx, &level), domain.ErrInvalidRequest)

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := stocks.LockForUpdate(ctx, productID)
		require.NoError(t, err)
		locked.Apply(1, 0, now)
		require.NoError(t, stocks.Update(ctx, &locked))
		require.NoError(t, movements.Create(ctx, &domain.StockMovement{
			ID: uuid.Must(uuid.NewV4()).String(), ProductID: productID, MovementType: domain.MovementTypeSale,
			QuantityChange: -4, QuantityBefore: 5, QuantityAfter: 1, CreatedAt: now,
		}))
		return domain.ErrInsufficientStock
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stored, err := stocks.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.AvailableUnits)
	count, err := movements.CountByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Zero(t, count)

	stale := stored
	stored.Apply(4, 0, now)
	require.NoError(t, stocks.Update(ctx, &stored))
	stale.Apply(3, 0, now)
	assert.ErrorIs(t, stocks.Update(ctx, &stale), domain.ErrConcurrencyConflict)

	_, err = stocks.GetByProductID(ctx, uniqueID("missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_ReservationTransitions(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	stocks := NewStockRepository(conn)
	reservations := NewReservationRepository(conn)
	productID := uniqueID("p")
	now := time.Now().UTC().Truncate(time.Microsecond)

	level := domain.StockLevel{ProductID: productID, CreatedAt: now}
	level.Apply(5, 0, now)
	require.NoError(t, stocks.Create(ctx, &level))

	res := domain.Reservation{
		ID: uuid.Must(uuid.NewV4()).String(), CartID: uniqueID("cart"), SessionID: "s1", ProductID: productID,
		QuantityReserved: 2, ExpiresAt: now.Add(-time.Minute), IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, reservations.Create(ctx, &res))

	active, err := reservations.GetActiveByCartID(ctx, res.CartID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].UserID)

	expired, err := reservations.GetExpired(ctx, now, 1000)
	require.NoError(t, err)
	var found bool
	for _, e := range expired {
		found = found || e.ID == res.ID
	}
	assert.True(t, found)

	ok, err := reservations.Deactivate(ctx, res.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = reservations.MarkConverted(ctx, res.ID, "order-1", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_OrderRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(conn)
	now := time.Now().UTC().Truncate(time.Microsecond)

	order := domain.Order{
		ID:                uuid.Must(uuid.NewV4()).String(),
		OrderNumber:       uniqueID("ORD"),
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		Items: []domain.OrderItem{
			{ProductID: "A", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50"), StockBeforeOrder: 10, StockAfterOrder: 8},
		},
		TotalAmount:     decimal.RequireFromString("25.00"),
		CustomerEmail:   "buyer@example.com",
		ShippingAddress: &domain.Address{Name: "Buyer", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		History:         []domain.StatusChange{{To: domain.OrderStatusPending, ChangedAt: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, &order))

	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now
	require.NoError(t, orders.UpdateStatus(ctx, &order, domain.StatusChange{From: domain.OrderStatusPending, To: domain.OrderStatusCancelled, ChangedAt: now}))
	assert.ErrorIs(t, orders.UpdateStatus(ctx, &order, domain.StatusChange{From: domain.OrderStatusPending, To: domain.OrderStatusCancelled, ChangedAt: now}), domain.ErrConcurrencyConflict)

	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	require.NotNil(t, stored.ShippingAddress)
	assert.Equal(t, "Springfield", stored.ShippingAddress.City)
	assert.Nil(t, stored.BillingAddress)
	assert.Len(t, stored.History, 2)
	assert.NotNil(t, stored.CancelledAt)
}
