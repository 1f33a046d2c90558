package domain

import (
	"context"
	"time"
)

type MovementType string

const (
	MovementTypeSale       MovementType = "sale"
	MovementTypeRestock    MovementType = "restock"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeReturn     MovementType = "return"
	MovementTypeDamage     MovementType = "damage"
	MovementTypeTransfer   MovementType = "transfer"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeSale, MovementTypeRestock, MovementTypeAdjustment,
		MovementTypeReturn, MovementTypeDamage, MovementTypeTransfer:
		return true
	}
	return false
}

type ReferenceType string

const (
	ReferenceTypeOrder    ReferenceType = "order"
	ReferenceTypePurchase ReferenceType = "purchase"
	ReferenceTypeManual   ReferenceType = "manual"
)

// StockMovement is append-only.
type StockMovement struct {
	ID             string        `json:"id"`
	ProductID      string        `json:"product_id"`
	MovementType   MovementType  `json:"movement_type"`
	QuantityChange int64         `json:"quantity_change"`
	QuantityBefore int64         `json:"quantity_before"`
	QuantityAfter  int64         `json:"quantity_after"`
	ReferenceID    string        `json:"reference_id,omitempty"`
	ReferenceType  ReferenceType `json:"reference_type,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type GetListMovementRequest struct {
	Page  int64 `query:"page"`
	Limit int64 `query:"limit"`
}

type MovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	GetListByProductID(ctx context.Context, productID string, param GetListMovementRequest) ([]StockMovement, error)
	CountByProductID(ctx context.Context, productID string) (int64, error)
	SumByProductID(ctx context.Context, productID string) (int64, error)
}
