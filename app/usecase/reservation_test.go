package usecase

import (
	"context"
	"errors"
	"inventory-service/app/domain"
	"inventory-service/app/repository/memory"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveReq(productID string, qty int64, cartID string) domain.ReserveRequest {
	return domain.ReserveRequest{ProductID: productID, Quantity: qty, CartID: cartID, SessionID: "session-" + cartID}
}

func TestReserve_NotEnoughStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 2, 1)
	before := len(env.events.Events())

	_, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 3, "cart1"))
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := env.reservations.GetByCartID(ctx, "cart1")
	require.NoError(t, err)
	assert.Empty(t, held)

	level := env.level(t, "P")
	assert.Equal(t, int64(2), level.AvailableUnits)
	assert.Zero(t, level.ReservedUnits)
	assert.Len(t, env.events.Events(), before)
}

func TestReserve_HoldsStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)

	res, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 3, "cart1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.IsActive)
	assert.Equal(t, env.clock.Now().Add(30*time.Minute), res.ExpiresAt)

	view, err := env.ledger.GetSellable(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Available)

	// Holds do not touch the ledger's stock figure.
	assert.Equal(t, int64(5), env.level(t, "P").AvailableUnits)

	_, ok, err = env.reservations.Reserve(ctx, reserveReq("P", 3, "cart2"))
	require.NoError(t, err)
	assert.False(t, ok)

	events := env.events.Filter(domain.CollectionReservations)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreate, events[0].Event)
}

func TestReserve_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)

	_, _, err := env.reservations.Reserve(ctx, reserveReq("P", 0, "cart1"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = env.reservations.Reserve(ctx, domain.ReserveRequest{ProductID: "P", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = env.reservations.Reserve(ctx, reserveReq("ghost", 1, "cart1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserve_StoreFailureHoldsNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)
	boom := errors.New("write failed")
	env.store.SetHooks(memory.Hooks{ReservationCreateErr: func(domain.Reservation) error { return boom }})

	_, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 2, "cart1"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Zero(t, env.level(t, "P").ReservedUnits)
}

func TestRelease_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)

	res, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 3, "cart1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.reservations.Release(ctx, res.ID))
	assert.Zero(t, env.level(t, "P").ReservedUnits)

	_, ok, err = env.reservations.Reserve(ctx, reserveReq("P", 1, "cart2"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.reservations.Release(ctx, res.ID))
	assert.Equal(t, int64(1), env.level(t, "P").ReservedUnits)

	stored, err := env.store.Reservations().GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.ReleasedAt)

	assert.ErrorIs(t, env.reservations.Release(ctx, "missing"), domain.ErrNotFound)
}

func TestReleaseExpired_ReturnsHeldStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)
	sweeper := NewReservationSweeper(env.reservations, &stubLock{acquire: true}, env.cfg)
	sweeper.now = env.clock.Now

	res, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 3, "cart1"))
	require.NoError(t, err)
	require.True(t, ok)

	env.clock.Advance(29 * time.Minute)
	assert.Zero(t, sweeper.SweepOnce(ctx))
	assert.Equal(t, int64(3), env.level(t, "P").ReservedUnits)

	env.clock.Advance(env.cfg.Inventory.SweepInterval + time.Minute)
	assert.Equal(t, 1, sweeper.SweepOnce(ctx))

	view, err := env.ledger.GetSellable(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(5), view.Available)

	stored, err := env.store.Reservations().GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.ConvertedToOrder)

	assert.Zero(t, sweeper.SweepOnce(ctx))
}

func TestReleaseExpired_BatchLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.reservations.cfg.SweepBatch = 2
	env.track(t, "P", 10, 1)

	for i := range 3 {
		_, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 1, "cart"+string(rune('a'+i))))
		require.NoError(t, err)
		require.True(t, ok)
	}
	now := env.clock.Now().Add(time.Hour)

	released, err := env.reservations.ReleaseExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	released, err = env.reservations.ReleaseExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Zero(t, env.level(t, "P").ReservedUnits)
}

func TestRelease_RacingSweepRestoresOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 10, 1)

	var ids []string
	for i := range 5 {
		res, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 2, "cart"+string(rune('a'+i))))
		require.NoError(t, err)
		require.True(t, ok)
		ids = append(ids, res.ID)
	}
	expiredAt := env.clock.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = env.reservations.Release(ctx, id)
		}()
		go func() {
			defer wg.Done()
			_ = env.reservations.Release(ctx, id)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = env.reservations.ReleaseExpired(ctx, expiredAt)
	}()
	wg.Wait()

	level := env.level(t, "P")
	assert.Zero(t, level.ReservedUnits)
	assert.Equal(t, int64(10), level.Sellable())
	assert.Len(t, env.events.Filter(domain.CollectionReservations), 10)
}

func TestConvertToOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)

	res, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 2, "cart1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.reservations.ConvertToOrder(ctx, res.ID, "order-1"))
	require.NoError(t, env.reservations.ConvertToOrder(ctx, res.ID, "order-1"))

	stored, err := env.store.Reservations().GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, stored.ConvertedToOrder)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, "order-1", *stored.OrderID)
	assert.Zero(t, env.level(t, "P").ReservedUnits)

	require.NoError(t, env.reservations.Release(ctx, res.ID))
	assert.ErrorIs(t, env.reservations.ConvertToOrder(ctx, res.ID, "order-2"), domain.ErrInvalidRequest)

	expired, err := env.store.Reservations().GetExpired(ctx, env.clock.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestSweeper_SkipsWithoutLock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.track(t, "P", 5, 1)
	_, ok, err := env.reservations.Reserve(ctx, reserveReq("P", 2, "cart1"))
	require.NoError(t, err)
	require.True(t, ok)
	env.clock.Advance(time.Hour)

	lock := &stubLock{acquire: false}
	sweeper := NewReservationSweeper(env.reservations, lock, env.cfg)
	sweeper.now = env.clock.Now
	assert.Zero(t, sweeper.SweepOnce(ctx))
	assert.Equal(t, int64(2), env.level(t, "P").ReservedUnits)
	assert.Zero(t, lock.released)

	lock.acquireErr = errors.New("redis down")
	assert.Zero(t, sweeper.SweepOnce(ctx))

	lock.acquireErr = nil
	lock.acquire = true
	assert.Equal(t, 1, sweeper.SweepOnce(ctx))
	assert.Equal(t, 1, lock.released)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	lock := &stubLock{acquire: true}
	sweeper := NewReservationSweeper(env.reservations, lock, env.cfg)
	sweeper.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		lock.mu.Lock()
		defer lock.mu.Unlock()
		return lock.acquired >= 2
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
