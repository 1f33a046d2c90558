package domain

import (
	"context"
	"fmt"
	"time"
)

type AlertType string

const (
	AlertTypeLowStock   AlertType = "low_stock"
	AlertTypeOutOfStock AlertType = "out_of_stock"
	AlertTypeOverstock  AlertType = "overstock"
	// AlertTypeLedgerDrift marks units a failed compensation left unaccounted for.
	AlertTypeLedgerDrift AlertType = "ledger_drift"
)

// FromThreshold reports whether the alert follows the stock level and may be resolved by it.
func (t AlertType) FromThreshold() bool {
	return t == AlertTypeLowStock || t == AlertTypeOutOfStock || t == AlertTypeOverstock
}

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

type InventoryAlert struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	AlertType      AlertType  `json:"alert_type"`
	AlertLevel     AlertLevel `json:"alert_level"`
	CurrentStock   int64      `json:"current_stock"`
	ThresholdValue int64      `json:"threshold_value"`
	Message        string     `json:"message"`
	IsActive       bool       `json:"is_active"`
	IsAcknowledged bool       `json:"is_acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CheckThresholds maps a stock figure to the alerts that should be active for it.
// Out of stock takes precedence over low stock; the two never fire together.
func CheckThresholds(productID string, stock, lowStockThreshold, maxStockLevel int64) []InventoryAlert {
	var alerts []InventoryAlert
	switch {
	case stock <= 0:
		alerts = append(alerts, InventoryAlert{
			ProductID:      productID,
			AlertType:      AlertTypeOutOfStock,
			AlertLevel:     AlertLevelCritical,
			CurrentStock:   stock,
			ThresholdValue: 0,
			Message:        fmt.Sprintf("product %s is out of stock", productID),
			IsActive:       true,
		})
	case stock <= lowStockThreshold:
		alerts = append(alerts, InventoryAlert{
			ProductID:      productID,
			AlertType:      AlertTypeLowStock,
			AlertLevel:     AlertLevelWarning,
			CurrentStock:   stock,
			ThresholdValue: lowStockThreshold,
			Message:        fmt.Sprintf("product %s is low on stock: %d left (threshold %d)", productID, stock, lowStockThreshold),
			IsActive:       true,
		})
	}
	if maxStockLevel > 0 && stock > maxStockLevel {
		alerts = append(alerts, InventoryAlert{
			ProductID:      productID,
			AlertType:      AlertTypeOverstock,
			AlertLevel:     AlertLevelInfo,
			CurrentStock:   stock,
			ThresholdValue: maxStockLevel,
			Message:        fmt.Sprintf("product %s is overstocked: %d on hand (max %d)", productID, stock, maxStockLevel),
			IsActive:       true,
		})
	}
	return alerts
}

type GetListAlertRequest struct {
	ProductID  string `query:"product_id"`
	ActiveOnly bool   `query:"active"`
	Page       int64  `query:"page"`
	Limit      int64  `query:"limit"`
}

type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required"`
}

type AlertRepository interface {
	Create(ctx context.Context, alert *InventoryAlert) error
	GetByID(ctx context.Context, id string) (InventoryAlert, error)
	GetActiveByProductID(ctx context.Context, productID string) ([]InventoryAlert, error)
	Resolve(ctx context.Context, id string, at time.Time) error
	Acknowledge(ctx context.Context, id, acknowledgedBy string, at time.Time) error
	GetListAlert(ctx context.Context, param GetListAlertRequest) ([]InventoryAlert, error)
	GetListAlertCount(ctx context.Context, param GetListAlertRequest) (int64, error)
}
