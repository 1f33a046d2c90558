package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"inventory-service/app/domain"
	"log/slog"
)

type orderRepository struct {
	conn *sql.DB
	tx   domain.Transactor
}

func NewOrderRepository(db *sql.DB) domain.OrderRepository {
	return &orderRepository{conn: db, tx: NewTransactor(db)}
}

func addressValue(a *domain.Address) (any, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func scanAddress(raw []byte) (*domain.Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create writes the order header, its lines and the first history row atomically.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	shipping, err := addressValue(order.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := addressValue(order.BillingAddress)
	if err != nil {
		return err
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := from(ctx, r.conn)
		query := `INSERT INTO orders (id, order_number, status, payment_status, fulfillment_status, total_amount,
			customer_email, customer_name, cart_id, shipping_address, billing_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
		_, err := exec.ExecContext(ctx, query, order.ID, order.OrderNumber, order.Status, order.PaymentStatus,
			order.FulfillmentStatus, order.TotalAmount, order.CustomerEmail, order.CustomerName, order.CartID,
			shipping, billing, order.Notes, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			slog.ErrorContext(ctx, "[orderRepository] Create", "insertOrder", err)
			return domain.PersistenceErr("insert order", err)
		}

		for i, item := range order.Items {
			_, err := exec.ExecContext(ctx, `INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price,
				stock_before_order, stock_after_order) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				order.ID, i+1, item.ProductID, item.Quantity, item.UnitPrice, item.StockBeforeOrder, item.StockAfterOrder)
			if err != nil {
				slog.ErrorContext(ctx, "[orderRepository] Create", "insertItem", err)
				return domain.PersistenceErr("insert order item", err)
			}
		}

		for _, change := range order.History {
			if err := insertHistory(ctx, exec, order.ID, change); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertHistory(ctx context.Context, exec executor, orderID string, change domain.StatusChange) error {
	_, err := exec.ExecContext(ctx, `INSERT INTO order_status_history (order_id, from_status, to_status, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5)`, orderID, change.From, change.To, change.Notes, change.ChangedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] insertHistory", "execContext", err)
		return domain.PersistenceErr("insert order history", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	var (
		order                                                      domain.Order
		shipping, billing                                          []byte
		confirmedAt, shippedAt, deliveredAt, cancelledAt, refunded sql.NullTime
	)
	exec := from(ctx, r.conn)
	err := exec.QueryRowContext(ctx, `SELECT id, order_number, status, payment_status, fulfillment_status, total_amount,
		customer_email, customer_name, cart_id, shipping_address, billing_address, notes,
		confirmed_at, shipped_at, delivered_at, cancelled_at, refunded_at, created_at, updated_at
	FROM orders WHERE id = $1`, id).Scan(&order.ID, &order.OrderNumber, &order.Status, &order.PaymentStatus,
		&order.FulfillmentStatus, &order.TotalAmount, &order.CustomerEmail, &order.CustomerName, &order.CartID,
		&shipping, &billing, &order.Notes, &confirmedAt, &shippedAt, &deliveredAt, &cancelledAt, &refunded,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[orderRepository] GetByID", "queryRowContext", err)
		return order, domain.PersistenceErr("get order", err)
	}
	order.ConfirmedAt = timePtr(confirmedAt)
	order.ShippedAt = timePtr(shippedAt)
	order.DeliveredAt = timePtr(deliveredAt)
	order.CancelledAt = timePtr(cancelledAt)
	order.RefundedAt = timePtr(refunded)

	if order.ShippingAddress, err = scanAddress(shipping); err != nil {
		return order, domain.PersistenceErr("decode shipping address", err)
	}
	if order.BillingAddress, err = scanAddress(billing); err != nil {
		return order, domain.PersistenceErr("decode billing address", err)
	}

	if order.Items, err = r.items(ctx, exec, id); err != nil {
		return order, err
	}
	if order.History, err = r.history(ctx, exec, id); err != nil {
		return order, err
	}
	return order, nil
}

func (r *orderRepository) items(ctx context.Context, exec executor, orderID string) ([]domain.OrderItem, error) {
	rows, err := exec.QueryContext(ctx, `SELECT product_id, quantity, unit_price, stock_before_order, stock_after_order
	FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] items", "queryContext", err)
		return nil, domain.PersistenceErr("list order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice, &item.StockBeforeOrder, &item.StockAfterOrder); err != nil {
			slog.ErrorContext(ctx, "[orderRepository] items", "scan", err)
			return nil, domain.PersistenceErr("list order items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceErr("list order items", err)
	}
	return items, nil
}

func (r *orderRepository) history(ctx context.Context, exec executor, orderID string) ([]domain.StatusChange, error) {
	rows, err := exec.QueryContext(ctx, `SELECT from_status, to_status, notes, changed_at
	FROM order_status_history WHERE order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] history", "queryContext", err)
		return nil, domain.PersistenceErr("list order history", err)
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(&change.From, &change.To, &change.Notes, &change.ChangedAt); err != nil {
			slog.ErrorContext(ctx, "[orderRepository] history", "scan", err)
			return nil, domain.PersistenceErr("list order history", err)
		}
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceErr("list order history", err)
	}
	return history, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order, change domain.StatusChange) error {
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := from(ctx, r.conn)
		res, err := exec.ExecContext(ctx, `UPDATE orders
		SET status = $2, payment_status = $3, fulfillment_status = $4, confirmed_at = $5, shipped_at = $6,
			delivered_at = $7, cancelled_at = $8, refunded_at = $9, updated_at = $10
		WHERE id = $1 AND status = $11`, order.ID, order.Status, order.PaymentStatus, order.FulfillmentStatus,
			order.ConfirmedAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, order.RefundedAt,
			order.UpdatedAt, change.From)
		if err != nil {
			slog.ErrorContext(ctx, "[orderRepository] UpdateStatus", "execContext", err)
			return domain.PersistenceErr("update order", err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return domain.PersistenceErr("update order", err)
		}
		if rowsAffected == 0 {
			return domain.ErrConcurrencyConflict
		}

		if err := insertHistory(ctx, exec, order.ID, change); err != nil {
			return err
		}
		order.History = append(order.History, change)
		return nil
	})
}
