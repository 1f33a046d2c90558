package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RestoresStock reports whether entering s returns the order's units to stock.
func (s OrderStatus) RestoresStock() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
)

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type OrderItem struct {
	ProductID        string          `json:"product_id"`
	Quantity         int64           `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	StockBeforeOrder int64           `json:"stock_before_order"`
	StockAfterOrder  int64           `json:"stock_after_order"`
}

type StatusChange struct {
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Notes     string      `json:"notes,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

type Order struct {
	ID                string            `json:"id"`
	OrderNumber       string            `json:"order_number"`
	Status            OrderStatus       `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	Items             []OrderItem       `json:"items"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerName      string            `json:"customer_name,omitempty"`
	CartID            string            `json:"cart_id,omitempty"`
	ShippingAddress   *Address          `json:"shipping_address,omitempty"`
	BillingAddress    *Address          `json:"billing_address,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	History           []StatusChange    `json:"history,omitempty"`
	ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
	ShippedAt         *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type OrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderRequest struct {
	CustomerEmail   string             `json:"customer_email"`
	CustomerName    string             `json:"customer_name"`
	CartID          string             `json:"cart_id"`
	Items           []OrderItemRequest `json:"items"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	ShippingAddress *Address           `json:"shipping_address"`
	BillingAddress  *Address           `json:"billing_address"`
	Notes           string             `json:"notes"`
}

type OrderErrorCode string

const (
	OrderErrorValidation        OrderErrorCode = "VALIDATION"
	OrderErrorInsufficientStock OrderErrorCode = "INSUFFICIENT_STOCK"
	OrderErrorProductNotFound   OrderErrorCode = "PRODUCT_NOT_FOUND"
	OrderErrorProcessingFailed  OrderErrorCode = "PROCESSING_FAILED"
)

type OrderError struct {
	Code      OrderErrorCode `json:"code"`
	ProductID string         `json:"product_id,omitempty"`
	Requested int64          `json:"requested,omitempty"`
	Available int64          `json:"available,omitempty"`
	Message   string         `json:"message"`
}

type InventoryUpdate struct {
	ProductID     string `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	PreviousStock int64  `json:"previous_stock"`
	NewStock      int64  `json:"new_stock"`
}

type OrderProcessingResult struct {
	Success          bool              `json:"success"`
	OrderID          string            `json:"order_id,omitempty"`
	OrderNumber      string            `json:"order_number,omitempty"`
	Errors           []OrderError      `json:"errors,omitempty"`
	InventoryUpdates []InventoryUpdate `json:"inventory_updates,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Notes  string      `json:"notes"`
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	// UpdateStatus persists status-derived fields and appends change to the history.
	UpdateStatus(ctx context.Context, order *Order, change StatusChange) error
}

type OrderCoordinator interface {
	ProcessOrder(ctx context.Context, req OrderRequest) OrderProcessingResult
	UpdateOrderStatus(ctx context.Context, orderID string, req UpdateOrderStatusRequest) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
}
