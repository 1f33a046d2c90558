package usecase

import (
	"context"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"inventory-service/config"
	"log/slog"
	"time"
)

// errNotHolding aborts a hold adjustment whose reservation was already released or converted.
var errNotHolding = errors.New("reservation no longer holds stock")

type reservationManager struct {
	ledger          domain.StockLedger
	reservationRepo domain.ReservationRepository
	publisher       domain.EventPublisher
	cfg             config.InventoryConfig
	now             func() time.Time
}

func NewReservationManager(
	ledger domain.StockLedger,
	reservationRepo domain.ReservationRepository,
	publisher domain.EventPublisher,
	cfg *config.Config) domain.ReservationManager {
	return &reservationManager{
		ledger:          ledger,
		reservationRepo: reservationRepo,
		publisher:       publisher,
		cfg:             cfg.Inventory,
		now:             time.Now,
	}
}

// Reserve holds quantity units for a cart. It reports false without any mutation when
// fewer sellable units are left.
func (u *reservationManager) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.Reservation, bool, error) {
	if req.ProductID == "" || req.CartID == "" || req.SessionID == "" || req.Quantity <= 0 {
		return domain.Reservation{}, false, fmt.Errorf("%w: product, cart, session and a positive quantity are required", domain.ErrValidation)
	}

	now := u.now()
	reservation := domain.Reservation{
		ID:               newID(),
		CartID:           req.CartID,
		SessionID:        req.SessionID,
		UserID:           req.UserID,
		ProductID:        req.ProductID,
		QuantityReserved: req.Quantity,
		ExpiresAt:        now.Add(u.cfg.ReservationTTL),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := u.ledger.AdjustHold(ctx, req.ProductID, req.Quantity, func(ctx context.Context) error {
		return u.reservationRepo.Create(ctx, &reservation)
	})
	if errors.Is(err, domain.ErrInsufficientStock) {
		slog.InfoContext(ctx, "[reservationManager] Reserve", "insufficientStock", err.Error(), "cartID", req.CartID)
		return domain.Reservation{}, false, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] Reserve", "adjustHold", err, "productID", req.ProductID)
		return domain.Reservation{}, false, err
	}

	u.publisher.Publish(ctx, reservationEvent(domain.EventCreate, reservation))
	slog.InfoContext(ctx, "[reservationManager] Reserve", "reservationID", reservation.ID, "productID", reservation.ProductID, "quantity", reservation.QuantityReserved)
	return reservation, true, nil
}

// Release is idempotent: an inactive or converted reservation is left untouched.
func (u *reservationManager) Release(ctx context.Context, reservationID string) error {
	reservation, err := u.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] Release", "getReservation", err)
		return err
	}
	if !reservation.Holding() {
		slog.InfoContext(ctx, "[reservationManager] Release", "noop", reservationID)
		return nil
	}

	if _, err := u.release(ctx, reservation); err != nil {
		slog.ErrorContext(ctx, "[reservationManager] Release", "release", err)
		return err
	}
	return nil
}

// release is shared by explicit release and the expiry sweep. The conditional deactivate
// makes a concurrent release and sweep restore the hold only once.
func (u *reservationManager) release(ctx context.Context, reservation domain.Reservation) (bool, error) {
	now := u.now()
	_, err := u.ledger.AdjustHold(ctx, reservation.ProductID, -reservation.QuantityReserved, func(ctx context.Context) error {
		ok, err := u.reservationRepo.Deactivate(ctx, reservation.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNotHolding
		}
		return nil
	})
	if errors.Is(err, errNotHolding) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	reservation.IsActive = false
	reservation.ReleasedAt = &now
	reservation.UpdatedAt = now
	u.publisher.Publish(ctx, reservationEvent(domain.EventUpdate, reservation))
	return true, nil
}

// ConvertToOrder links a holding reservation to an order and drops its hold. The units
// themselves are consumed by the order's own deduction.
func (u *reservationManager) ConvertToOrder(ctx context.Context, reservationID, orderID string) error {
	reservation, err := u.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] ConvertToOrder", "getReservation", err)
		return err
	}
	if reservation.ConvertedToOrder && reservation.OrderID != nil && *reservation.OrderID == orderID {
		return nil
	}
	if !reservation.Holding() {
		return fmt.Errorf("%w: reservation %s is no longer active", domain.ErrInvalidRequest, reservationID)
	}

	now := u.now()
	_, err = u.ledger.AdjustHold(ctx, reservation.ProductID, -reservation.QuantityReserved, func(ctx context.Context) error {
		ok, err := u.reservationRepo.MarkConverted(ctx, reservation.ID, orderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNotHolding
		}
		return nil
	})
	if errors.Is(err, errNotHolding) {
		return fmt.Errorf("%w: reservation %s is no longer active", domain.ErrInvalidRequest, reservationID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] ConvertToOrder", "adjustHold", err)
		return err
	}

	reservation.IsActive = false
	reservation.ConvertedToOrder = true
	reservation.OrderID = &orderID
	reservation.ReleasedAt = &now
	reservation.UpdatedAt = now
	u.publisher.Publish(ctx, reservationEvent(domain.EventUpdate, reservation))
	slog.InfoContext(ctx, "[reservationManager] ConvertToOrder", "reservationID", reservationID, "orderID", orderID)
	return nil
}

func (u *reservationManager) GetByCartID(ctx context.Context, cartID string) ([]domain.Reservation, error) {
	reservations, err := u.reservationRepo.GetActiveByCartID(ctx, cartID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] GetByCartID", "getReservations", err)
		return nil, err
	}
	return reservations, nil
}

// ReleaseExpired releases up to one batch of reservations that expired before now.
// A failing reservation does not stop the batch; it is retried on the next cycle.
func (u *reservationManager) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := u.reservationRepo.GetExpired(ctx, now, u.cfg.SweepBatch)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationManager] ReleaseExpired", "getExpired", err)
		return 0, err
	}

	var (
		released int
		errs     []error
	)
	for _, reservation := range expired {
		ok, err := u.release(ctx, reservation)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationManager] ReleaseExpired", "release", err, "reservationID", reservation.ID)
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}

func reservationEvent(eventType domain.EventType, reservation domain.Reservation) domain.Event {
	return domain.Event{Event: eventType, Collection: domain.CollectionReservations, DocumentID: reservation.ID, Document: reservation}
}
