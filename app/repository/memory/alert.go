package memory

import (
	"context"
	"inventory-service/app/domain"
	"slices"
	"time"
)

type alertRepository struct {
	s *Store
}

func (r *alertRepository) Create(ctx context.Context, a *domain.InventoryAlert) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().AlertCreateErr; hook != nil {
		if err := hook(*a); err != nil {
			return err
		}
	}
	r.s.alerts[a.ID] = *a
	r.s.alertOrder = append(r.s.alertOrder, a.ID)
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (domain.InventoryAlert, error) {
	defer r.s.enter(ctx)()
	a, ok := r.s.alerts[id]
	if !ok {
		return domain.InventoryAlert{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *alertRepository) GetActiveByProductID(ctx context.Context, productID string) ([]domain.InventoryAlert, error) {
	defer r.s.enter(ctx)()
	var out []domain.InventoryAlert
	for _, id := range r.s.alertOrder {
		a := r.s.alerts[id]
		if a.ProductID == productID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *alertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	defer r.s.enter(ctx)()
	a, ok := r.s.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsActive = false
	a.ResolvedAt = &at
	a.UpdatedAt = at
	r.s.alerts[id] = a
	return nil
}

func (r *alertRepository) Acknowledge(ctx context.Context, id, acknowledgedBy string, at time.Time) error {
	defer r.s.enter(ctx)()
	a, ok := r.s.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsActive = false
	a.IsAcknowledged = true
	a.AcknowledgedBy = acknowledgedBy
	a.AcknowledgedAt = &at
	a.UpdatedAt = at
	r.s.alerts[id] = a
	return nil
}

func (r *alertRepository) filtered(param domain.GetListAlertRequest) []domain.InventoryAlert {
	var out []domain.InventoryAlert
	for _, id := range slices.Backward(r.s.alertOrder) {
		a := r.s.alerts[id]
		if param.ProductID != "" && a.ProductID != param.ProductID {
			continue
		}
		if param.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *alertRepository) GetListAlert(ctx context.Context, param domain.GetListAlertRequest) ([]domain.InventoryAlert, error) {
	defer r.s.enter(ctx)()
	all := r.filtered(param)
	start, end := page(len(all), param.Page, param.Limit)
	return all[start:end], nil
}

func (r *alertRepository) GetListAlertCount(ctx context.Context, param domain.GetListAlertRequest) (int64, error) {
	defer r.s.enter(ctx)()
	return int64(len(r.filtered(param))), nil
}
