package domain

import (
	"context"
	"time"
)

type Reservation struct {
	ID               string     `json:"id"`
	CartID           string     `json:"cart_id"`
	SessionID        string     `json:"session_id"`
	UserID           *string    `json:"user_id,omitempty"`
	ProductID        string     `json:"product_id"`
	QuantityReserved int64      `json:"quantity_reserved"`
	ExpiresAt        time.Time  `json:"expires_at"`
	IsActive         bool       `json:"is_active"`
	ConvertedToOrder bool       `json:"converted_to_order"`
	OrderID          *string    `json:"order_id,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Holding reports whether the reservation still withholds stock from other shoppers.
func (r Reservation) Holding() bool {
	return r.IsActive && !r.ConvertedToOrder
}

type ReserveRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	CartID    string  `json:"cart_id" validate:"required"`
	SessionID string  `json:"session_id" validate:"required"`
	UserID    *string `json:"user_id"`
}

type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id string) (Reservation, error)
	GetActiveByCartID(ctx context.Context, cartID string) ([]Reservation, error)
	// Deactivate flips an active, unconverted reservation to inactive and reports whether it did.
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkConverted links an active reservation to an order and reports whether it did.
	MarkConverted(ctx context.Context, id, orderID string, at time.Time) (bool, error)
	GetExpired(ctx context.Context, before time.Time, limit int) ([]Reservation, error)
}

type ReservationManager interface {
	Reserve(ctx context.Context, req ReserveRequest) (Reservation, bool, error)
	Release(ctx context.Context, reservationID string) error
	ConvertToOrder(ctx context.Context, reservationID, orderID string) error
	GetByCartID(ctx context.Context, cartID string) ([]Reservation, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// SweepLock elects the single instance allowed to run an expiry sweep cycle.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
