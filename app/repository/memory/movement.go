package memory

import (
	"context"
	"inventory-service/app/domain"
)

type movementRepository struct {
	s *Store
}

func (r *movementRepository) Create(ctx context.Context, m *domain.StockMovement) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().MovementCreateErr; hook != nil {
		if err := hook(*m); err != nil {
			return err
		}
	}
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *movementRepository) byProduct(productID string) []domain.StockMovement {
	var out []domain.StockMovement
	for _, m := range r.s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func (r *movementRepository) GetListByProductID(ctx context.Context, productID string, param domain.GetListMovementRequest) ([]domain.StockMovement, error) {
	defer r.s.enter(ctx)()
	all := r.byProduct(productID)
	start, end := page(len(all), param.Page, param.Limit)
	return all[start:end], nil
}

func (r *movementRepository) CountByProductID(ctx context.Context, productID string) (int64, error) {
	defer r.s.enter(ctx)()
	return int64(len(r.byProduct(productID))), nil
}

func (r *movementRepository) SumByProductID(ctx context.Context, productID string) (int64, error) {
	defer r.s.enter(ctx)()
	var sum int64
	for _, m := range r.byProduct(productID) {
		sum += m.QuantityChange
	}
	return sum, nil
}
