package memory

import (
	"context"
	"errors"
	"inventory-service/app/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	stocks := store.Stocks()
	require.NoError(t, stocks.Create(ctx, &domain.StockLevel{ProductID: "p1", AvailableUnits: 5}))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		level, err := stocks.LockForUpdate(ctx, "p1")
		require.NoError(t, err)
		level.AvailableUnits = 1
		require.NoError(t, stocks.Update(ctx, &level))
		require.NoError(t, store.Movements().Create(ctx, &domain.StockMovement{ID: "m1", ProductID: "p1", QuantityChange: -4}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	level, err := stocks.GetByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), level.AvailableUnits)
	assert.Equal(t, int64(1), level.Version)

	count, err := store.Movements().CountByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStockUpdate_VersionConflict(t *testing.T) {
	ctx := context.Background()
	stocks := NewStore().Stocks()
	require.NoError(t, stocks.Create(ctx, &domain.StockLevel{ProductID: "p1", AvailableUnits: 5}))

	first, _ := stocks.GetByProductID(ctx, "p1")
	second, _ := stocks.GetByProductID(ctx, "p1")

	first.AvailableUnits = 4
	require.NoError(t, stocks.Update(ctx, &first))
	assert.Equal(t, int64(2), first.Version)

	second.AvailableUnits = 3
	assert.ErrorIs(t, stocks.Update(ctx, &second), domain.ErrConcurrencyConflict)
}

func TestReservation_DeactivateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Reservations()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &domain.Reservation{ID: "r1", CartID: "c1", ProductID: "p1", QuantityReserved: 2, IsActive: true, ExpiresAt: now}))

	ok, err := repo.Deactivate(ctx, "r1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Deactivate(ctx, "r1", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkConverted(ctx, "r1", "o1", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReservation_GetExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Reservations()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.Create(ctx, &domain.Reservation{
			ID: id, CartID: "c1", ProductID: "p1", QuantityReserved: 1, IsActive: true,
			ExpiresAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	expired, err := repo.GetExpired(ctx, base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "r1", expired[0].ID)
	assert.Equal(t, "r2", expired[1].ID)

	expired, err = repo.GetExpired(ctx, base.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestHooks_InjectFailure(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("disk full")
	store.SetHooks(Hooks{OrderCreateErr: func(domain.Order) error { return boom }})

	err := store.Orders().Create(ctx, &domain.Order{ID: "o1"})
	assert.ErrorIs(t, err, boom)

	_, err = store.Orders().GetByID(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
