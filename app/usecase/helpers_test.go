package usecase

import (
	"context"
	"inventory-service/app/broadcast"
	"inventory-service/app/domain"
	"inventory-service/app/repository/memory"
	"inventory-service/config"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store        *memory.Store
	bus          *broadcast.Broadcaster
	events       *broadcast.Recorder
	clock        *fakeClock
	cfg          *config.Config
	ledger       *stockLedger
	reservations *reservationManager
	orders       *orderCoordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{InstanceID: "test", Inventory: config.DefaultInventoryConfig()}
	store := memory.NewStore()
	bus := broadcast.New(cfg.InstanceID)
	events := &broadcast.Recorder{}
	bus.Subscribe(broadcast.Wildcard, broadcast.Wildcard, events.Handle)
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	ledger := NewStockLedger(store, store.Stocks(), store.Movements(), store.Alerts(), bus, cfg).(*stockLedger)
	ledger.now = clock.Now
	reservations := NewReservationManager(ledger, store.Reservations(), bus, cfg).(*reservationManager)
	reservations.now = clock.Now
	orders := NewOrderCoordinator(ledger, reservations, store.Orders(), bus, cfg).(*orderCoordinator)
	orders.now = clock.Now

	return &testEnv{
		store:        store,
		bus:          bus,
		events:       events,
		clock:        clock,
		cfg:          cfg,
		ledger:       ledger,
		reservations: reservations,
		orders:       orders,
	}
}

func (e *testEnv) track(t *testing.T, productID string, units, threshold int64) {
	t.Helper()
	_, err := e.ledger.TrackProduct(context.Background(), domain.TrackProductRequest{
		ProductID:         productID,
		InitialUnits:      units,
		LowStockThreshold: threshold,
	})
	require.NoError(t, err)
}

func (e *testEnv) level(t *testing.T, productID string) domain.StockLevel {
	t.Helper()
	level, err := e.ledger.GetStockLevel(context.Background(), productID)
	require.NoError(t, err)
	return level
}

func (e *testEnv) activeAlerts(t *testing.T, productID string) []domain.InventoryAlert {
	t.Helper()
	alerts, err := e.store.Alerts().GetActiveByProductID(context.Background(), productID)
	require.NoError(t, err)
	return alerts
}

func (e *testEnv) movementSum(t *testing.T, productID string) int64 {
	t.Helper()
	sum, err := e.store.Movements().SumByProductID(context.Background(), productID)
	require.NoError(t, err)
	return sum
}

func (e *testEnv) movementCount(t *testing.T, productID string) int64 {
	t.Helper()
	count, err := e.store.Movements().CountByProductID(context.Background(), productID)
	require.NoError(t, err)
	return count
}

func sale(productID string, qty int64) domain.StockChange {
	return domain.StockChange{
		ProductID:     productID,
		Delta:         -qty,
		MovementType:  domain.MovementTypeSale,
		ReferenceType: domain.ReferenceTypeOrder,
		ReferenceID:   "ref-" + productID,
	}
}

// stubLock is a SweepLock whose answers are scripted by the test.
type stubLock struct {
	mu         sync.Mutex
	acquire    bool
	acquireErr error
	acquired   int
	released   int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.acquire {
		l.acquired++
	}
	return l.acquire, nil
}

func (l *stubLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}
