package memory

import (
	"context"
	"inventory-service/app/domain"
	"slices"
	"time"
)

type reservationRepository struct {
	s *Store
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().ReservationCreateErr; hook != nil {
		if err := hook(*res); err != nil {
			return err
		}
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	defer r.s.enter(ctx)()
	res, ok := r.s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return res, nil
}

func (r *reservationRepository) GetActiveByCartID(ctx context.Context, cartID string) ([]domain.Reservation, error) {
	defer r.s.enter(ctx)()
	var out []domain.Reservation
	for _, res := range r.s.reservations {
		if res.CartID == cartID && res.Holding() {
			out = append(out, res)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *reservationRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	defer r.s.enter(ctx)()
	res, ok := r.s.reservations[id]
	if !ok || !res.Holding() {
		return false, nil
	}
	res.IsActive = false
	res.ReleasedAt = &at
	res.UpdatedAt = at
	r.s.reservations[id] = res
	return true, nil
}

func (r *reservationRepository) MarkConverted(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	defer r.s.enter(ctx)()
	if hook := r.s.getHooks().MarkConvertedErr; hook != nil {
		if err := hook(id); err != nil {
			return false, err
		}
	}
	res, ok := r.s.reservations[id]
	if !ok || !res.Holding() {
		return false, nil
	}
	res.IsActive = false
	res.ConvertedToOrder = true
	res.OrderID = &orderID
	res.ReleasedAt = &at
	res.UpdatedAt = at
	r.s.reservations[id] = res
	return true, nil
}

func (r *reservationRepository) GetExpired(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	defer r.s.enter(ctx)()
	var out []domain.Reservation
	for _, res := range r.s.reservations {
		if res.Holding() && res.ExpiresAt.Before(before) {
			out = append(out, res)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
