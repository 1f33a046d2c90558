package domain

import (
	"context"
	"time"
)

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// DeriveStockStatus is the only place a stock status is computed.
func DeriveStockStatus(available, lowStockThreshold int64) StockStatus {
	switch {
	case available <= 0:
		return StockStatusOutOfStock
	case available <= lowStockThreshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

type StockLevel struct {
	ProductID         string      `json:"product_id"`
	AvailableUnits    int64       `json:"available_units"`
	ReservedUnits     int64       `json:"reserved_units"`
	StockStatus       StockStatus `json:"stock_status"`
	LowStockThreshold int64       `json:"low_stock_threshold"`
	MaxStockLevel     int64       `json:"max_stock_level"`
	LastRestockedAt   *time.Time  `json:"last_restocked_at,omitempty"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Sellable is the quantity offerable to new buyers.
func (s StockLevel) Sellable() int64 {
	if s.AvailableUnits <= s.ReservedUnits {
		return 0
	}
	return s.AvailableUnits - s.ReservedUnits
}

func (s *StockLevel) refreshStatus() {
	s.StockStatus = DeriveStockStatus(s.AvailableUnits, s.LowStockThreshold)
}

// Apply sets new available and reserved units and recomputes the status.
func (s *StockLevel) Apply(available, reserved int64, at time.Time) {
	s.AvailableUnits = available
	s.ReservedUnits = reserved
	s.UpdatedAt = at
	s.refreshStatus()
}

// StockChange is one ledger mutation request.
type StockChange struct {
	ProductID     string
	Delta         int64
	MovementType  MovementType
	ReferenceID   string
	ReferenceType ReferenceType
	Reason        string
	// HeldCredit is the quantity the caller itself holds through reservations on this product.
	// A deduction may consume it without tripping the hold check.
	HeldCredit int64
	// Override lets an admin correction ignore other shoppers' holds. Stock still never goes negative.
	Override bool
}

type StockDeltaResult struct {
	ProductID     string      `json:"product_id"`
	PreviousStock int64       `json:"previous_stock"`
	NewStock      int64       `json:"new_stock"`
	StockStatus   StockStatus `json:"stock_status"`
	MovementID    string      `json:"movement_id"`
}

type TrackProductRequest struct {
	ProductID         string `json:"product_id"`
	InitialUnits      int64  `json:"initial_units" validate:"gte=0"`
	LowStockThreshold int64  `json:"low_stock_threshold" validate:"gte=0"`
	MaxStockLevel     int64  `json:"max_stock_level" validate:"gte=0"`
}

type AdjustStockRequest struct {
	Delta        int64        `json:"delta" validate:"required"`
	MovementType MovementType `json:"movement_type" validate:"required,oneof=restock adjustment damage transfer return"`
	Reason       string       `json:"reason"`
	ReferenceID  string       `json:"reference_id"`
	Override     bool         `json:"override"`
}

type StockView struct {
	ProductID   string      `json:"product_id"`
	Available   int64       `json:"available"`
	StockStatus StockStatus `json:"stock_status"`
}

// Reconciliation compares the stored stock with a replay of the movement ledger.
type Reconciliation struct {
	ProductID      string `json:"product_id"`
	AvailableUnits int64  `json:"available_units"`
	MovementSum    int64  `json:"movement_sum"`
	Consistent     bool   `json:"consistent"`
}

type GetListStockRequest struct {
	Status    string `query:"status"`
	LowStock  bool   `query:"low_stock"`
	Page      int64  `query:"page"`
	Limit     int64  `query:"limit"`
	SortBy    string `query:"sort_by"`
	SortOrder string `query:"sort_order"`
}

type Metadata struct {
	TotalData int64  `json:"total_data"`
	TotalPage int64  `json:"total_page"`
	Page      int64  `json:"page"`
	Limit     int64  `json:"limit"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

func NewMetadata(count, page, limit int64, sortBy, sortOrder string) Metadata {
	var totalPage int64
	if limit > 0 {
		totalPage = (count + limit - 1) / limit
	}
	return Metadata{
		TotalData: count,
		TotalPage: totalPage,
		Page:      page,
		Limit:     limit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
}

// Transactor runs fn in one store transaction carried by the context.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type StockRepository interface {
	Create(ctx context.Context, level *StockLevel) error
	GetByProductID(ctx context.Context, productID string) (StockLevel, error)
	LockForUpdate(ctx context.Context, productID string) (StockLevel, error)
	// Update writes level only if the stored version still equals level.Version,
	// then bumps level.Version. A mismatch yields ErrConcurrencyConflict.
	Update(ctx context.Context, level *StockLevel) error
	GetListStock(ctx context.Context, param GetListStockRequest) ([]StockLevel, error)
	GetListStockCount(ctx context.Context, param GetListStockRequest) (int64, error)
}

type StockLedger interface {
	GetStock(ctx context.Context, productID string) (int64, error)
	GetStockLevel(ctx context.Context, productID string) (StockLevel, error)
	GetSellable(ctx context.Context, productID string) (StockView, error)
	TrackProduct(ctx context.Context, req TrackProductRequest) (StockLevel, error)
	ApplyDelta(ctx context.Context, change StockChange) (StockDeltaResult, error)
	AdjustHold(ctx context.Context, productID string, delta int64, within func(ctx context.Context) error) (StockLevel, error)
	GetListStock(ctx context.Context, param GetListStockRequest) ([]StockLevel, Metadata, error)
	GetMovements(ctx context.Context, productID string, param GetListMovementRequest) ([]StockMovement, Metadata, error)
	Reconcile(ctx context.Context, productID string) (Reconciliation, error)
	GetListAlert(ctx context.Context, param GetListAlertRequest) ([]InventoryAlert, Metadata, error)
	AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) (InventoryAlert, error)
	// FlagDrift raises a critical alert for units a compensating change could not restore.
	// It stays active until an operator acknowledges it.
	FlagDrift(ctx context.Context, productID string, quantity int64, reason string) (InventoryAlert, error)
}
