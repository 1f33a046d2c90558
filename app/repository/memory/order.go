package memory

import (
	"context"
	"inventory-service/app/domain"
	"slices"
)

type orderRepository struct {
	s *Store
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().OrderCreateErr; hook != nil {
		if err := hook(*order); err != nil {
			return err
		}
	}
	stored := *order
	stored.Items = slices.Clone(order.Items)
	stored.History = slices.Clone(order.History)
	r.s.orders[order.ID] = stored
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	defer r.s.enter(ctx)()
	order, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	order.Items = slices.Clone(order.Items)
	order.History = slices.Clone(order.History)
	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order, change domain.StatusChange) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().OrderUpdateErr; hook != nil {
		if err := hook(*order); err != nil {
			return err
		}
	}
	if _, ok := r.s.orders[order.ID]; !ok {
		return domain.ErrNotFound
	}
	order.History = append(slices.Clone(order.History), change)
	stored := *order
	stored.Items = slices.Clone(order.Items)
	stored.History = slices.Clone(order.History)
	r.s.orders[order.ID] = stored
	return nil
}
