package memory

import (
	"context"
	"fmt"
	"inventory-service/app/domain"
	"slices"
	"strings"
)

type stockRepository struct {
	s *Store
}

func (r *stockRepository) Create(ctx context.Context, level *domain.StockLevel) error {
	defer r.s.enter(ctx)()
	if _, ok := r.s.stocks[level.ProductID]; ok {
		return fmt.Errorf("%w: product %s already tracked", domain.ErrInvalidRequest, level.ProductID)
	}
	level.Version = 1
	r.s.stocks[level.ProductID] = *level
	return nil
}

func (r *stockRepository) GetByProductID(ctx context.Context, productID string) (domain.StockLevel, error) {
	defer r.s.enter(ctx)()
	level, ok := r.s.stocks[productID]
	if !ok {
		return domain.StockLevel{}, domain.ErrNotFound
	}
	return level, nil
}

func (r *stockRepository) LockForUpdate(ctx context.Context, productID string) (domain.StockLevel, error) {
	return r.GetByProductID(ctx, productID)
}

func (r *stockRepository) Update(ctx context.Context, level *domain.StockLevel) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().StockUpdateErr; hook != nil {
		if err := hook(*level); err != nil {
			return err
		}
	}
	current, ok := r.s.stocks[level.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != level.Version {
		return domain.ErrConcurrencyConflict
	}
	level.Version++
	r.s.stocks[level.ProductID] = *level
	return nil
}

func (r *stockRepository) filtered(param domain.GetListStockRequest) []domain.StockLevel {
	var out []domain.StockLevel
	for _, level := range r.s.stocks {
		if param.Status != "" && string(level.StockStatus) != param.Status {
			continue
		}
		if param.LowStock && level.StockStatus == domain.StockStatusInStock {
			continue
		}
		out = append(out, level)
	}
	desc := param.SortOrder == "desc"
	slices.SortFunc(out, func(a, b domain.StockLevel) int {
		var c int
		switch param.SortBy {
		case "available_units":
			c = int(a.AvailableUnits - b.AvailableUnits)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ProductID, b.ProductID)
		}
		if desc {
			return -c
		}
		return c
	})
	return out
}

func (r *stockRepository) GetListStock(ctx context.Context, param domain.GetListStockRequest) ([]domain.StockLevel, error) {
	defer r.s.enter(ctx)()
	all := r.filtered(param)
	start, end := page(len(all), param.Page, param.Limit)
	return all[start:end], nil
}

func (r *stockRepository) GetListStockCount(ctx context.Context, param domain.GetListStockRequest) (int64, error) {
	defer r.s.enter(ctx)()
	return int64(len(r.filtered(param))), nil
}
