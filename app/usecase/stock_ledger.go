package usecase

import (
	"context"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"inventory-service/config"
	"inventory-service/pkg/keylock"
	"log/slog"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"
)

type stockLedger struct {
	transactor   domain.Transactor
	stockRepo    domain.StockRepository
	movementRepo domain.MovementRepository
	alertRepo    domain.AlertRepository
	publisher    domain.EventPublisher
	locks        *keylock.KeyLock
	cfg          config.InventoryConfig
	now          func() time.Time
}

func NewStockLedger(
	transactor domain.Transactor,
	stockRepo domain.StockRepository,
	movementRepo domain.MovementRepository,
	alertRepo domain.AlertRepository,
	publisher domain.EventPublisher,
	cfg *config.Config) domain.StockLedger {
	return &stockLedger{
		transactor:   transactor,
		stockRepo:    stockRepo,
		movementRepo: movementRepo,
		alertRepo:    alertRepo,
		publisher:    publisher,
		locks:        keylock.New(),
		cfg:          cfg.Inventory,
		now:          time.Now,
	}
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func (u *stockLedger) GetStock(ctx context.Context, productID string) (int64, error) {
	level, err := u.stockRepo.GetByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetStock", "getStock", err, "productID", productID)
		return 0, err
	}
	return level.AvailableUnits, nil
}

func (u *stockLedger) GetStockLevel(ctx context.Context, productID string) (domain.StockLevel, error) {
	level, err := u.stockRepo.GetByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetStockLevel", "getStock", err, "productID", productID)
		return domain.StockLevel{}, err
	}
	return level, nil
}

// GetSellable is the storefront view: stock minus active holds.
func (u *stockLedger) GetSellable(ctx context.Context, productID string) (domain.StockView, error) {
	level, err := u.stockRepo.GetByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetSellable", "getStock", err, "productID", productID)
		return domain.StockView{}, err
	}
	return domain.StockView{
		ProductID:   level.ProductID,
		Available:   level.Sellable(),
		StockStatus: domain.DeriveStockStatus(level.Sellable(), level.LowStockThreshold),
	}, nil
}

func (u *stockLedger) TrackProduct(ctx context.Context, req domain.TrackProductRequest) (domain.StockLevel, error) {
	if req.ProductID == "" || req.InitialUnits < 0 || req.LowStockThreshold < 0 || req.MaxStockLevel < 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: product id and non-negative quantities are required", domain.ErrValidation)
	}

	unlock := u.locks.Lock(req.ProductID)
	defer unlock()

	var (
		level  domain.StockLevel
		events []domain.Event
	)
	err := u.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		now := u.now()
		current, err := u.stockRepo.LockForUpdate(ctx, req.ProductID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			level = domain.StockLevel{
				ProductID:         req.ProductID,
				LowStockThreshold: req.LowStockThreshold,
				MaxStockLevel:     req.MaxStockLevel,
				CreatedAt:         now,
			}
			level.Apply(0, 0, now)
			if err := u.stockRepo.Create(ctx, &level); err != nil {
				slog.ErrorContext(ctx, "[stockLedger] TrackProduct", "createStock", err)
				return err
			}
			events = append(events, levelEvent(domain.EventCreate, level))

			if req.InitialUnits > 0 {
				applied, err := u.applyLocked(ctx, &level, domain.StockChange{
					ProductID:     req.ProductID,
					Delta:         req.InitialUnits,
					MovementType:  domain.MovementTypeRestock,
					ReferenceType: domain.ReferenceTypeManual,
					Reason:        "initial stock",
				}, now)
				if err != nil {
					return err
				}
				events = append(events, applied...)
			} else {
				alertEvents, err := u.syncAlerts(ctx, level, nil, now)
				if err != nil {
					return err
				}
				events = append(events, alertEvents...)
			}
			return nil
		case err != nil:
			slog.ErrorContext(ctx, "[stockLedger] TrackProduct", "lockForUpdate", err)
			return err
		}

		before := domain.CheckThresholds(current.ProductID, current.AvailableUnits, current.LowStockThreshold, current.MaxStockLevel)
		level = current
		level.LowStockThreshold = req.LowStockThreshold
		level.MaxStockLevel = req.MaxStockLevel
		level.Apply(level.AvailableUnits, level.ReservedUnits, now)
		if err := u.stockRepo.Update(ctx, &level); err != nil {
			slog.ErrorContext(ctx, "[stockLedger] TrackProduct", "updateStock", err)
			return err
		}
		alertEvents, err := u.syncAlerts(ctx, level, before, now)
		if err != nil {
			return err
		}
		events = append(events, levelEvent(domain.EventUpdate, level))
		events = append(events, alertEvents...)
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] TrackProduct", "transactionError", err)
		return domain.StockLevel{}, err
	}

	u.publish(ctx, events)
	slog.InfoContext(ctx, "[stockLedger] TrackProduct", "productID", level.ProductID, "available", level.AvailableUnits)
	return level, nil
}

// ApplyDelta is the only path that changes available units. Calls for one product are
// serialized by the in-process key lock and, across instances, by the row lock taken in
// the transaction. Events are published before the key lock is released so subscribers
// observe one product's mutations in the order they were applied.
func (u *stockLedger) ApplyDelta(ctx context.Context, change domain.StockChange) (domain.StockDeltaResult, error) {
	if change.ProductID == "" || change.Delta == 0 {
		return domain.StockDeltaResult{}, fmt.Errorf("%w: product id and a non-zero delta are required", domain.ErrValidation)
	}
	if !change.MovementType.Valid() {
		return domain.StockDeltaResult{}, fmt.Errorf("%w: unknown movement type %q", domain.ErrValidation, change.MovementType)
	}

	unlock := u.locks.Lock(change.ProductID)
	defer unlock()

	var (
		result domain.StockDeltaResult
		events []domain.Event
	)
	err := u.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		now := u.now()
		level, err := u.stockRepo.LockForUpdate(ctx, change.ProductID)
		if errors.Is(err, domain.ErrNotFound) && change.Delta > 0 && change.MovementType == domain.MovementTypeRestock {
			level, err = u.trackImplicitly(ctx, change.ProductID, now)
			if err == nil {
				events = append(events, levelEvent(domain.EventCreate, level))
			}
		}
		if err != nil {
			return err
		}

		previous := level.AvailableUnits
		applied, err := u.applyLocked(ctx, &level, change, now)
		if err != nil {
			return err
		}
		events = append(events, applied...)

		result = domain.StockDeltaResult{
			ProductID:     level.ProductID,
			PreviousStock: previous,
			NewStock:      level.AvailableUnits,
			StockStatus:   level.StockStatus,
		}
		for _, evt := range applied {
			if evt.Collection == domain.CollectionStockMovements {
				result.MovementID = evt.DocumentID
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			slog.InfoContext(ctx, "[stockLedger] ApplyDelta", "insufficientStock", err.Error())
		} else {
			slog.ErrorContext(ctx, "[stockLedger] ApplyDelta", "transactionError", err, "productID", change.ProductID)
		}
		return domain.StockDeltaResult{}, err
	}

	u.publish(ctx, events)
	return result, nil
}

func (u *stockLedger) trackImplicitly(ctx context.Context, productID string, now time.Time) (domain.StockLevel, error) {
	level := domain.StockLevel{
		ProductID:         productID,
		LowStockThreshold: u.cfg.DefaultLowStockThreshold,
		CreatedAt:         now,
	}
	level.Apply(0, 0, now)
	if err := u.stockRepo.Create(ctx, &level); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] trackImplicitly", "createStock", err)
		return domain.StockLevel{}, err
	}
	return level, nil
}

// deductionFloor is the lowest available figure a deduction may leave behind.
func deductionFloor(level domain.StockLevel, change domain.StockChange) int64 {
	if change.Override {
		return 0
	}
	credit := min(max(change.HeldCredit, 0), level.ReservedUnits)
	return level.ReservedUnits - credit
}

// applyLocked mutates a level already locked inside the current transaction.
func (u *stockLedger) applyLocked(ctx context.Context, level *domain.StockLevel, change domain.StockChange, now time.Time) ([]domain.Event, error) {
	previous := level.AvailableUnits
	if change.Delta > 0 && previous > math.MaxInt64-change.Delta {
		return nil, fmt.Errorf("%w: delta %d overflows the stock of product %s", domain.ErrValidation, change.Delta, level.ProductID)
	}
	next := previous + change.Delta
	if change.Delta < 0 {
		floor := deductionFloor(*level, change)
		if next < floor {
			return nil, &domain.InsufficientStockError{
				ProductID: level.ProductID,
				Requested: -change.Delta,
				Available: max(previous-floor, 0),
			}
		}
	}

	level.Apply(next, level.ReservedUnits, now)
	if change.MovementType == domain.MovementTypeRestock && change.Delta > 0 {
		restockedAt := now
		level.LastRestockedAt = &restockedAt
	}
	if err := u.stockRepo.Update(ctx, level); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] applyLocked", "updateStock", err)
		return nil, err
	}

	movement := domain.StockMovement{
		ID:             newID(),
		ProductID:      level.ProductID,
		MovementType:   change.MovementType,
		QuantityChange: change.Delta,
		QuantityBefore: previous,
		QuantityAfter:  next,
		ReferenceID:    change.ReferenceID,
		ReferenceType:  change.ReferenceType,
		Reason:         change.Reason,
		CreatedAt:      now,
	}
	if err := u.movementRepo.Create(ctx, &movement); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] applyLocked", "createMovement", err)
		return nil, err
	}

	before := domain.CheckThresholds(level.ProductID, previous, level.LowStockThreshold, level.MaxStockLevel)
	alertEvents, err := u.syncAlerts(ctx, *level, before, now)
	if err != nil {
		return nil, err
	}

	events := []domain.Event{
		levelEvent(domain.EventUpdate, *level),
		{Event: domain.EventCreate, Collection: domain.CollectionStockMovements, DocumentID: movement.ID, Document: movement},
	}
	return append(events, alertEvents...), nil
}

// syncAlerts makes the active alerts of a product match CheckThresholds for its current stock.
// before holds the alerts that applied ahead of the change; an alert is only raised when the
// product enters its band, so an acknowledged alert stays quiet while stock remains inside it.
func (u *stockLedger) syncAlerts(ctx context.Context, level domain.StockLevel, before []domain.InventoryAlert, now time.Time) ([]domain.Event, error) {
	desired := domain.CheckThresholds(level.ProductID, level.AvailableUnits, level.LowStockThreshold, level.MaxStockLevel)
	active, err := u.alertRepo.GetActiveByProductID(ctx, level.ProductID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] syncAlerts", "getActiveAlerts", err)
		return nil, err
	}

	activeTypes := make(map[domain.AlertType]bool, len(active))
	for _, a := range active {
		activeTypes[a.AlertType] = true
	}
	beforeTypes := make(map[domain.AlertType]bool, len(before))
	for _, a := range before {
		beforeTypes[a.AlertType] = true
	}
	desiredTypes := make(map[domain.AlertType]bool, len(desired))

	var events []domain.Event
	for _, alert := range desired {
		desiredTypes[alert.AlertType] = true
		if activeTypes[alert.AlertType] || beforeTypes[alert.AlertType] {
			continue
		}
		alert.ID = newID()
		alert.CreatedAt = now
		alert.UpdatedAt = now
		if err := u.alertRepo.Create(ctx, &alert); err != nil {
			slog.ErrorContext(ctx, "[stockLedger] syncAlerts", "createAlert", err)
			return nil, err
		}
		slog.WarnContext(ctx, "[stockLedger] syncAlerts", "alert", alert.AlertType, "level", alert.AlertLevel, "productID", alert.ProductID, "stock", alert.CurrentStock)
		events = append(events, domain.Event{Event: domain.EventCreate, Collection: domain.CollectionInventoryAlerts, DocumentID: alert.ID, Document: alert})
	}

	if !u.cfg.AlertAutoResolve {
		return events, nil
	}
	for _, alert := range active {
		if desiredTypes[alert.AlertType] || !alert.AlertType.FromThreshold() {
			continue
		}
		if err := u.alertRepo.Resolve(ctx, alert.ID, now); err != nil {
			slog.ErrorContext(ctx, "[stockLedger] syncAlerts", "resolveAlert", err)
			return nil, err
		}
		resolvedAt := now
		alert.IsActive = false
		alert.ResolvedAt = &resolvedAt
		alert.UpdatedAt = now
		events = append(events, domain.Event{Event: domain.EventUpdate, Collection: domain.CollectionInventoryAlerts, DocumentID: alert.ID, Document: alert})
	}
	return events, nil
}

// AdjustHold moves reserved units by delta and runs within under the same product lock
// and transaction. A positive delta fails with InsufficientStockError when it exceeds the
// sellable units. If within fails nothing is written.
func (u *stockLedger) AdjustHold(ctx context.Context, productID string, delta int64, within func(ctx context.Context) error) (domain.StockLevel, error) {
	unlock := u.locks.Lock(productID)
	defer unlock()

	var (
		level  domain.StockLevel
		events []domain.Event
	)
	err := u.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		level, err = u.stockRepo.LockForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if delta > 0 && delta > level.Sellable() {
			return &domain.InsufficientStockError{ProductID: productID, Requested: delta, Available: level.Sellable()}
		}

		if within != nil {
			if err := within(ctx); err != nil {
				return err
			}
		}

		reserved := max(level.ReservedUnits+delta, 0)
		level.Apply(level.AvailableUnits, reserved, u.now())
		if err := u.stockRepo.Update(ctx, &level); err != nil {
			slog.ErrorContext(ctx, "[stockLedger] AdjustHold", "updateStock", err)
			return err
		}
		events = append(events, levelEvent(domain.EventUpdate, level))
		return nil
	})
	if err != nil {
		return domain.StockLevel{}, err
	}

	u.publish(ctx, events)
	return level, nil
}

func (u *stockLedger) GetListStock(ctx context.Context, param domain.GetListStockRequest) ([]domain.StockLevel, domain.Metadata, error) {
	var metadata domain.Metadata
	normalizePaging(&param.Page, &param.Limit)

	levels, err := u.stockRepo.GetListStock(ctx, param)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetListStock", "getListStock", err)
		return nil, metadata, err
	}

	count, err := u.stockRepo.GetListStockCount(ctx, param)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetListStock", "getListStockCount", err)
		return nil, metadata, err
	}

	return levels, domain.NewMetadata(count, param.Page, param.Limit, param.SortBy, param.SortOrder), nil
}

func (u *stockLedger) GetMovements(ctx context.Context, productID string, param domain.GetListMovementRequest) ([]domain.StockMovement, domain.Metadata, error) {
	var metadata domain.Metadata
	normalizePaging(&param.Page, &param.Limit)

	if _, err := u.stockRepo.GetByProductID(ctx, productID); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetMovements", "getStock", err)
		return nil, metadata, err
	}

	movements, err := u.movementRepo.GetListByProductID(ctx, productID, param)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetMovements", "getMovements", err)
		return nil, metadata, err
	}

	count, err := u.movementRepo.CountByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetMovements", "countMovements", err)
		return nil, metadata, err
	}

	return movements, domain.NewMetadata(count, param.Page, param.Limit, "", ""), nil
}

// Reconcile replays the product's movements. Holding the key lock keeps the stock row
// and the movement sum from the same point in the ledger.
func (u *stockLedger) Reconcile(ctx context.Context, productID string) (domain.Reconciliation, error) {
	unlock := u.locks.Lock(productID)
	defer unlock()

	level, err := u.stockRepo.GetByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] Reconcile", "getStock", err)
		return domain.Reconciliation{}, err
	}

	sum, err := u.movementRepo.SumByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] Reconcile", "sumMovements", err)
		return domain.Reconciliation{}, err
	}

	result := domain.Reconciliation{
		ProductID:      productID,
		AvailableUnits: level.AvailableUnits,
		MovementSum:    sum,
		Consistent:     sum == level.AvailableUnits,
	}
	if !result.Consistent {
		slog.WarnContext(ctx, "[stockLedger] Reconcile", "drift", sum-level.AvailableUnits, "productID", productID)
	}
	return result, nil
}

func (u *stockLedger) GetListAlert(ctx context.Context, param domain.GetListAlertRequest) ([]domain.InventoryAlert, domain.Metadata, error) {
	var metadata domain.Metadata
	normalizePaging(&param.Page, &param.Limit)

	alerts, err := u.alertRepo.GetListAlert(ctx, param)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetListAlert", "getListAlert", err)
		return nil, metadata, err
	}

	count, err := u.alertRepo.GetListAlertCount(ctx, param)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] GetListAlert", "getListAlertCount", err)
		return nil, metadata, err
	}

	return alerts, domain.NewMetadata(count, param.Page, param.Limit, "", ""), nil
}

func (u *stockLedger) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) (domain.InventoryAlert, error) {
	alert, err := u.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] AcknowledgeAlert", "getAlert", err)
		return domain.InventoryAlert{}, err
	}

	unlock := u.locks.Lock(alert.ProductID)
	defer unlock()

	now := u.now()
	if err := u.alertRepo.Acknowledge(ctx, alertID, acknowledgedBy, now); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] AcknowledgeAlert", "acknowledge", err)
		return domain.InventoryAlert{}, err
	}

	alert.IsActive = false
	alert.IsAcknowledged = true
	alert.AcknowledgedBy = acknowledgedBy
	alert.AcknowledgedAt = &now
	alert.UpdatedAt = now

	u.publish(ctx, []domain.Event{{Event: domain.EventUpdate, Collection: domain.CollectionInventoryAlerts, DocumentID: alert.ID, Document: alert}})
	slog.InfoContext(ctx, "[stockLedger] AcknowledgeAlert", "alertID", alertID, "by", acknowledgedBy)
	return alert, nil
}

func (u *stockLedger) FlagDrift(ctx context.Context, productID string, quantity int64, reason string) (domain.InventoryAlert, error) {
	unlock := u.locks.Lock(productID)
	defer unlock()

	active, err := u.alertRepo.GetActiveByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[stockLedger] FlagDrift", "getActiveAlerts", err)
		return domain.InventoryAlert{}, err
	}
	for _, a := range active {
		if a.AlertType == domain.AlertTypeLedgerDrift {
			slog.WarnContext(ctx, "[stockLedger] FlagDrift", "alreadyFlagged", a.ID, "productID", productID, "quantity", quantity, "reason", reason)
			return a, nil
		}
	}

	var current int64
	if level, err := u.stockRepo.GetByProductID(ctx, productID); err == nil {
		current = level.AvailableUnits
	}

	now := u.now()
	alert := domain.InventoryAlert{
		ID:             newID(),
		ProductID:      productID,
		AlertType:      domain.AlertTypeLedgerDrift,
		AlertLevel:     domain.AlertLevelCritical,
		CurrentStock:   current,
		ThresholdValue: quantity,
		Message:        fmt.Sprintf("product %s: %d units were not compensated (%s)", productID, quantity, reason),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.alertRepo.Create(ctx, &alert); err != nil {
		slog.ErrorContext(ctx, "[stockLedger] FlagDrift", "createAlert", err, "productID", productID, "quantity", quantity)
		return domain.InventoryAlert{}, err
	}

	u.publish(ctx, []domain.Event{{Event: domain.EventCreate, Collection: domain.CollectionInventoryAlerts, DocumentID: alert.ID, Document: alert}})
	slog.WarnContext(ctx, "[stockLedger] FlagDrift", "alert", alert.ID, "productID", productID, "quantity", quantity, "reason", reason)
	return alert, nil
}

func (u *stockLedger) publish(ctx context.Context, events []domain.Event) {
	for _, evt := range events {
		u.publisher.Publish(ctx, evt)
	}
}

func levelEvent(eventType domain.EventType, level domain.StockLevel) domain.Event {
	return domain.Event{Event: eventType, Collection: domain.CollectionProducts, DocumentID: level.ProductID, Document: level}
}

func normalizePaging(page, limit *int64) {
	if *page <= 0 {
		*page = 1
	}
	if *limit <= 0 || *limit > 100 {
		*limit = 20
	}
}
