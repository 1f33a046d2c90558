package domain

import (
	"context"
	"time"
)

type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

const (
	CollectionProducts        = "products"
	CollectionStockMovements  = "stock_movements"
	CollectionOrders          = "orders"
	CollectionInventoryAlerts = "inventory_alerts"
	CollectionReservations    = "cart_reservations"
)

type Event struct {
	ID         string    `json:"id"`
	Event      EventType `json:"event"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id"`
	Document   any       `json:"document"`
	Timestamp  time.Time `json:"timestamp"`
	Origin     string    `json:"origin,omitempty"`
}

type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

// EventSink forwards events beyond this process.
type EventSink interface {
	Forward(ctx context.Context, evt Event) error
	Close() error
}
