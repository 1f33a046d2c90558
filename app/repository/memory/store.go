// Package memory is a transactional in-process store. It backs the test suites and
// single-node development runs (STORE_DRIVER=memory); production uses the db package.
package memory

import (
	"context"
	"inventory-service/app/domain"
	"maps"
	"slices"
	"sync"
)

type txKey struct{}

// Hooks inject failures into individual store operations.
type Hooks struct {
	StockUpdateErr       func(level domain.StockLevel) error
	MovementCreateErr    func(m domain.StockMovement) error
	AlertCreateErr       func(a domain.InventoryAlert) error
	ReservationCreateErr func(r domain.Reservation) error
	MarkConvertedErr     func(id string) error
	OrderCreateErr       func(o domain.Order) error
	OrderUpdateErr       func(o domain.Order) error
}

type Store struct {
	mu           sync.Mutex
	stocks       map[string]domain.StockLevel
	movements    []domain.StockMovement
	alerts       map[string]domain.InventoryAlert
	alertOrder   []string
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order

	hooksMu sync.RWMutex
	hooks   Hooks
}

func NewStore() *Store {
	return &Store{
		stocks:       make(map[string]domain.StockLevel),
		alerts:       make(map[string]domain.InventoryAlert),
		reservations: make(map[string]domain.Reservation),
		orders:       make(map[string]domain.Order),
	}
}

func (s *Store) SetHooks(h Hooks) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = h
}

func (s *Store) getHooks() Hooks {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	return s.hooks
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// enter takes the store lock unless the caller already runs inside a transaction.
func (s *Store) enter(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	stocks       map[string]domain.StockLevel
	movements    []domain.StockMovement
	alerts       map[string]domain.InventoryAlert
	alertOrder   []string
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		stocks:       maps.Clone(s.stocks),
		movements:    slices.Clone(s.movements),
		alerts:       maps.Clone(s.alerts),
		alertOrder:   slices.Clone(s.alertOrder),
		reservations: maps.Clone(s.reservations),
		orders:       maps.Clone(s.orders),
	}
}

func (s *Store) restore(snap snapshot) {
	s.stocks = snap.stocks
	s.movements = snap.movements
	s.alerts = snap.alerts
	s.alertOrder = snap.alertOrder
	s.reservations = snap.reservations
	s.orders = snap.orders
}

// WithTransaction serializes fn against every other store access and discards all of
// its writes when fn fails. Nested calls join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Stocks() domain.StockRepository             { return &stockRepository{s} }
func (s *Store) Movements() domain.MovementRepository       { return &movementRepository{s} }
func (s *Store) Alerts() domain.AlertRepository             { return &alertRepository{s} }
func (s *Store) Reservations() domain.ReservationRepository { return &reservationRepository{s} }
func (s *Store) Orders() domain.OrderRepository             { return &orderRepository{s} }

func page(total int, p, limit int64) (int, int) {
	if limit <= 0 {
		return 0, total
	}
	if p <= 0 {
		p = 1
	}
	start := int((p - 1) * limit)
	if start > total {
		start = total
	}
	end := start + int(limit)
	if end > total {
		end = total
	}
	return start, end
}
