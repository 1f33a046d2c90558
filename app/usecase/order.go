package usecase

import (
	"context"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"inventory-service/config"
	"inventory-service/pkg/keylock"
	"log/slog"
	"strings"
	"time"
)

const processingFailedMessage = "order could not be processed, please retry"

type orderCoordinator struct {
	ledger       domain.StockLedger
	reservations domain.ReservationManager
	orderRepo    domain.OrderRepository
	publisher    domain.EventPublisher
	locks        *keylock.KeyLock
	cfg          config.InventoryConfig
	now          func() time.Time
}

func NewOrderCoordinator(
	ledger domain.StockLedger,
	reservations domain.ReservationManager,
	orderRepo domain.OrderRepository,
	publisher domain.EventPublisher,
	cfg *config.Config) domain.OrderCoordinator {
	return &orderCoordinator{
		ledger:       ledger,
		reservations: reservations,
		orderRepo:    orderRepo,
		publisher:    publisher,
		locks:        keylock.New(),
		cfg:          cfg.Inventory,
		now:          time.Now,
	}
}

// OrderNumber renders the human readable order number for an order created at t.
func OrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", t.UTC().Format("20060102"), t.UnixMilli()%1_000_000)
}

func validateOrder(req domain.OrderRequest) []domain.OrderError {
	var errs []domain.OrderError
	if strings.TrimSpace(req.CustomerEmail) == "" {
		errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, Message: "customer email is required"})
	}
	if len(req.Items) == 0 {
		errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, Message: "order must contain at least one item"})
	}
	if !req.TotalAmount.IsPositive() {
		errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, Message: "total amount must be greater than zero"})
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, Message: fmt.Sprintf("item %d: product id is required", i)})
		}
		if item.Quantity <= 0 {
			errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, ProductID: item.ProductID, Message: "quantity must be positive"})
		}
		if !item.UnitPrice.IsPositive() {
			errs = append(errs, domain.OrderError{Code: domain.OrderErrorValidation, ProductID: item.ProductID, Message: "unit price must be positive"})
		}
	}
	return errs
}

// ProcessOrder deducts every item or none. Any failure after a deduction, including a
// failed order write, reverses the deductions already applied.
func (u *orderCoordinator) ProcessOrder(ctx context.Context, req domain.OrderRequest) domain.OrderProcessingResult {
	if errs := validateOrder(req); len(errs) > 0 {
		slog.InfoContext(ctx, "[orderCoordinator] ProcessOrder", "validation", len(errs))
		return domain.OrderProcessingResult{Errors: errs}
	}

	now := u.now()
	orderID := newID()
	orderNumber := OrderNumber(now)

	held := make(map[string]int64)
	var cartReservations []domain.Reservation
	if req.CartID != "" {
		reservations, err := u.reservations.GetByCartID(ctx, req.CartID)
		if err != nil {
			slog.ErrorContext(ctx, "[orderCoordinator] ProcessOrder", "getCartReservations", err)
			return domain.OrderProcessingResult{Errors: []domain.OrderError{{Code: domain.OrderErrorProcessingFailed, Message: processingFailedMessage}}}
		}
		for _, r := range reservations {
			held[r.ProductID] += r.QuantityReserved
		}
		cartReservations = reservations
	}

	var (
		errs    []domain.OrderError
		applied []domain.InventoryUpdate
		items   []domain.OrderItem
		// checked counts units of earlier lines that were checked but not deducted.
		checked = make(map[string]int64)
	)
	for _, item := range req.Items {
		level, err := u.ledger.GetStockLevel(ctx, item.ProductID)
		if err != nil {
			errs = append(errs, orderErrorFrom(item, err))
			continue
		}

		// The cart's holds stay in ReservedUnits until conversion, so the full credit applies
		// to every line of the same product; earlier deductions already lowered AvailableUnits.
		credit := min(held[item.ProductID], level.ReservedUnits)
		offerable := max(level.AvailableUnits-(level.ReservedUnits-credit)-checked[item.ProductID], 0)
		if offerable < item.Quantity {
			errs = append(errs, orderErrorFrom(item, &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: offerable,
			}))
			continue
		}
		if len(errs) > 0 {
			// The order is already lost; keep checking so the caller sees every failing item.
			checked[item.ProductID] += item.Quantity
			continue
		}

		result, err := u.applyWithRetry(ctx, domain.StockChange{
			ProductID:     item.ProductID,
			Delta:         -item.Quantity,
			MovementType:  domain.MovementTypeSale,
			ReferenceID:   orderID,
			ReferenceType: domain.ReferenceTypeOrder,
			Reason:        "order " + orderNumber,
			HeldCredit:    credit,
		})
		if err != nil {
			errs = append(errs, orderErrorFrom(item, err))
			continue
		}

		applied = append(applied, domain.InventoryUpdate{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			PreviousStock: result.PreviousStock,
			NewStock:      result.NewStock,
		})
		items = append(items, domain.OrderItem{
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			StockBeforeOrder: result.PreviousStock,
			StockAfterOrder:  result.NewStock,
		})
	}

	if len(errs) > 0 {
		u.rollback(ctx, orderID, applied)
		slog.InfoContext(ctx, "[orderCoordinator] ProcessOrder", "rejected", len(errs), "rolledBack", len(applied))
		return domain.OrderProcessingResult{Errors: errs}
	}

	order := domain.Order{
		ID:                orderID,
		OrderNumber:       orderNumber,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		Items:             items,
		TotalAmount:       req.TotalAmount,
		CustomerEmail:     req.CustomerEmail,
		CustomerName:      req.CustomerName,
		CartID:            req.CartID,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.BillingAddress,
		Notes:             req.Notes,
		History:           []domain.StatusChange{{To: domain.OrderStatusPending, ChangedAt: now}},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.orderRepo.Create(ctx, &order); err != nil {
		slog.ErrorContext(ctx, "[orderCoordinator] ProcessOrder", "createOrder", err, "orderID", orderID)
		u.rollback(ctx, orderID, applied)
		return domain.OrderProcessingResult{Errors: []domain.OrderError{{Code: domain.OrderErrorProcessingFailed, Message: processingFailedMessage}}}
	}

	u.convertReservations(ctx, cartReservations, order)
	u.publisher.Publish(ctx, orderEvent(domain.EventCreate, order))
	slog.InfoContext(ctx, "[orderCoordinator] ProcessOrder",
		"analytics", true,
		"event", "order_created",
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"items", len(order.Items),
		"totalAmount", order.TotalAmount.String())

	return domain.OrderProcessingResult{
		Success:          true,
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		InventoryUpdates: applied,
	}
}

func orderErrorFrom(item domain.OrderItemRequest, err error) domain.OrderError {
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		return domain.OrderError{
			Code:      domain.OrderErrorInsufficientStock,
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Available: insufficient.Available,
			Message:   fmt.Sprintf("only %d available", insufficient.Available),
		}
	case errors.Is(err, domain.ErrNotFound):
		return domain.OrderError{
			Code:      domain.OrderErrorProductNotFound,
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Message:   "product is not stocked",
		}
	default:
		return domain.OrderError{
			Code:      domain.OrderErrorProcessingFailed,
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Message:   processingFailedMessage,
		}
	}
}

// applyWithRetry retries a delta rejected by a concurrent write up to LedgerMaxRetries times.
func (u *orderCoordinator) applyWithRetry(ctx context.Context, change domain.StockChange) (domain.StockDeltaResult, error) {
	for attempt := 0; ; attempt++ {
		result, err := u.ledger.ApplyDelta(ctx, change)
		if errors.Is(err, domain.ErrConcurrencyConflict) && attempt < u.cfg.LedgerMaxRetries {
			slog.WarnContext(ctx, "[orderCoordinator] applyWithRetry", "conflict", change.ProductID, "attempt", attempt+1)
			continue
		}
		return result, err
	}
}

// rollback reverses applied deductions, newest first.
func (u *orderCoordinator) rollback(ctx context.Context, orderID string, applied []domain.InventoryUpdate) {
	for i := len(applied) - 1; i >= 0; i-- {
		update := applied[i]
		_, err := u.applyWithRetry(ctx, domain.StockChange{
			ProductID:     update.ProductID,
			Delta:         update.Quantity,
			MovementType:  domain.MovementTypeAdjustment,
			ReferenceID:   orderID,
			ReferenceType: domain.ReferenceTypeOrder,
			Reason:        "rollback of failed order",
		})
		if err != nil {
			slog.ErrorContext(ctx, "[orderCoordinator] rollback", "rollbackFailed", err, "orderID", orderID, "productID", update.ProductID, "quantity", update.Quantity)
			u.flagDrift(ctx, update, "rollback of order "+orderID+" failed")
		}
	}
}

// convertReservations consumes the cart's holds for ordered products. A failure leaves the
// hold in place until it expires.
func (u *orderCoordinator) convertReservations(ctx context.Context, reservations []domain.Reservation, order domain.Order) {
	ordered := make(map[string]bool, len(order.Items))
	for _, item := range order.Items {
		ordered[item.ProductID] = true
	}
	for _, r := range reservations {
		if !ordered[r.ProductID] {
			continue
		}
		if err := u.reservations.ConvertToOrder(ctx, r.ID, order.ID); err != nil {
			slog.WarnContext(ctx, "[orderCoordinator] convertReservations", "convert", err, "reservationID", r.ID, "orderID", order.ID)
		}
	}
}

func (u *orderCoordinator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderCoordinator] GetOrder", "getOrder", err)
		return domain.Order{}, err
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its state machine. Entering cancelled or refunded
// returns every item to stock; if any item cannot be returned, or the order write fails,
// the returned items are deducted again and the order keeps its old status.
func (u *orderCoordinator) UpdateOrderStatus(ctx context.Context, orderID string, req domain.UpdateOrderStatusRequest) (domain.Order, error) {
	unlock := u.locks.Lock(orderID)
	defer unlock()

	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderCoordinator] UpdateOrderStatus", "getOrder", err)
		return domain.Order{}, err
	}

	next := req.Status
	if !order.Status.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
	}

	var restored []domain.InventoryUpdate
	if next.RestoresStock() {
		for _, item := range order.Items {
			_, err := u.applyWithRetry(ctx, domain.StockChange{
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				MovementType:  domain.MovementTypeReturn,
				ReferenceID:   order.ID,
				ReferenceType: domain.ReferenceTypeOrder,
				Reason:        fmt.Sprintf("order %s %s", order.OrderNumber, next),
			})
			if err != nil {
				slog.ErrorContext(ctx, "[orderCoordinator] UpdateOrderStatus", "restoreStock", err, "productID", item.ProductID)
				u.undoRestore(ctx, order.ID, restored)
				return domain.Order{}, err
			}
			restored = append(restored, domain.InventoryUpdate{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	now := u.now()
	change := domain.StatusChange{From: order.Status, To: next, Notes: req.Notes, ChangedAt: now}
	applyStatus(&order, next, now)

	if err := u.orderRepo.UpdateStatus(ctx, &order, change); err != nil {
		slog.ErrorContext(ctx, "[orderCoordinator] UpdateOrderStatus", "updateStatus", err)
		u.undoRestore(ctx, order.ID, restored)
		return domain.Order{}, err
	}

	u.publisher.Publish(ctx, orderEvent(domain.EventUpdate, order))
	slog.InfoContext(ctx, "[orderCoordinator] UpdateOrderStatus", "orderID", order.ID, "from", change.From, "to", change.To)
	return order, nil
}

func applyStatus(order *domain.Order, next domain.OrderStatus, now time.Time) {
	at := now
	switch next {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	case domain.OrderStatusShipped:
		order.ShippedAt = &at
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &at
		order.FulfillmentStatus = domain.FulfillmentStatusFulfilled
	case domain.OrderStatusCancelled:
		order.CancelledAt = &at
		order.FulfillmentStatus = domain.FulfillmentStatusUnfulfilled
	case domain.OrderStatusRefunded:
		order.RefundedAt = &at
		order.FulfillmentStatus = domain.FulfillmentStatusUnfulfilled
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	order.Status = next
	order.UpdatedAt = now
}

// undoRestore takes back units returned by a status change that did not go through.
func (u *orderCoordinator) undoRestore(ctx context.Context, orderID string, restored []domain.InventoryUpdate) {
	for i := len(restored) - 1; i >= 0; i-- {
		update := restored[i]
		_, err := u.applyWithRetry(ctx, domain.StockChange{
			ProductID:     update.ProductID,
			Delta:         -update.Quantity,
			MovementType:  domain.MovementTypeAdjustment,
			ReferenceID:   orderID,
			ReferenceType: domain.ReferenceTypeOrder,
			Reason:        "revert of failed restoration",
			Override:      true,
		})
		if err != nil {
			slog.ErrorContext(ctx, "[orderCoordinator] undoRestore", "revertFailed", err, "orderID", orderID, "productID", update.ProductID)
			u.flagDrift(ctx, update, "revert of restoration for order "+orderID+" failed")
		}
	}
}

// flagDrift leaves a durable trace of a compensation that did not land.
func (u *orderCoordinator) flagDrift(ctx context.Context, update domain.InventoryUpdate, reason string) {
	if _, err := u.ledger.FlagDrift(ctx, update.ProductID, update.Quantity, reason); err != nil {
		slog.ErrorContext(ctx, "[orderCoordinator] flagDrift", "flagDrift", err, "productID", update.ProductID, "quantity", update.Quantity)
	}
}

func orderEvent(eventType domain.EventType, order domain.Order) domain.Event {
	return domain.Event{Event: eventType, Collection: domain.CollectionOrders, DocumentID: order.ID, Document: order}
}
