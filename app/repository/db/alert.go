package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"log/slog"
	"time"
)

const alertColumns = `id, product_id, alert_type, alert_level, current_stock, threshold_value, message,
	is_active, is_acknowledged, acknowledged_by, acknowledged_at, resolved_at, created_at, updated_at`

type alertRepository struct {
	conn *sql.DB
}

func NewAlertRepository(db *sql.DB) domain.AlertRepository {
	return &alertRepository{db}
}

func scanAlert(row rowScanner) (domain.InventoryAlert, error) {
	var (
		a              domain.InventoryAlert
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ProductID, &a.AlertType, &a.AlertLevel, &a.CurrentStock, &a.ThresholdValue,
		&a.Message, &a.IsActive, &a.IsAcknowledged, &a.AcknowledgedBy, &acknowledgedAt, &resolvedAt,
		&a.CreatedAt, &a.UpdatedAt)
	a.AcknowledgedAt = timePtr(acknowledgedAt)
	a.ResolvedAt = timePtr(resolvedAt)
	return a, err
}

func (r *alertRepository) Create(ctx context.Context, a *domain.InventoryAlert) error {
	query := `INSERT INTO inventory_alerts (` + alertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := from(ctx, r.conn).ExecContext(ctx, query, a.ID, a.ProductID, a.AlertType, a.AlertLevel, a.CurrentStock,
		a.ThresholdValue, a.Message, a.IsActive, a.IsAcknowledged, a.AcknowledgedBy, a.AcknowledgedAt,
		a.ResolvedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[alertRepository] Create", "execContext", err)
		return domain.PersistenceErr("insert alert", err)
	}
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (domain.InventoryAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM inventory_alerts WHERE id = $1`

	a, err := scanAlert(from(ctx, r.conn).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[alertRepository] GetByID", "queryRowContext", err)
		return a, domain.PersistenceErr("get alert", err)
	}
	return a, nil
}

func (r *alertRepository) GetActiveByProductID(ctx context.Context, productID string) ([]domain.InventoryAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM inventory_alerts WHERE product_id = $1 AND is_active ORDER BY seq`
	return r.list(ctx, "GetActiveByProductID", query, productID)
}

func (r *alertRepository) list(ctx context.Context, method, query string, args ...any) ([]domain.InventoryAlert, error) {
	rows, err := from(ctx, r.conn).QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "[alertRepository] "+method, "queryContext", err)
		return nil, domain.PersistenceErr("list alerts", err)
	}
	defer rows.Close()

	var alerts []domain.InventoryAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			slog.ErrorContext(ctx, "[alertRepository] "+method, "scan", err)
			return nil, domain.PersistenceErr("list alerts", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[alertRepository] "+method, "rowError", err)
		return nil, domain.PersistenceErr("list alerts", err)
	}
	return alerts, nil
}

func (r *alertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE inventory_alerts SET is_active = FALSE, resolved_at = $2, updated_at = $2 WHERE id = $1`
	return r.exec(ctx, "Resolve", query, id, at)
}

func (r *alertRepository) Acknowledge(ctx context.Context, id, acknowledgedBy string, at time.Time) error {
	query := `UPDATE inventory_alerts
	SET is_active = FALSE, is_acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3, updated_at = $3
	WHERE id = $1`
	return r.exec(ctx, "Acknowledge", query, id, acknowledgedBy, at)
}

func (r *alertRepository) exec(ctx context.Context, method, query string, args ...any) error {
	res, err := from(ctx, r.conn).ExecContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "[alertRepository] "+method, "execContext", err)
		return domain.PersistenceErr("update alert", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return domain.PersistenceErr("update alert", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func alertFilter(param domain.GetListAlertRequest) (string, []any) {
	where := ` WHERE 1 = 1`
	var args []any
	if param.ProductID != "" {
		args = append(args, param.ProductID)
		where += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if param.ActiveOnly {
		where += " AND is_active"
	}
	return where, args
}

func (r *alertRepository) GetListAlert(ctx context.Context, param domain.GetListAlertRequest) ([]domain.InventoryAlert, error) {
	where, args := alertFilter(param)
	query := `SELECT ` + alertColumns + ` FROM inventory_alerts` + where + ` ORDER BY seq DESC`
	if param.Page > 0 && param.Limit > 0 {
		offset := (param.Page - 1) * param.Limit
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", param.Limit, offset)
	}
	return r.list(ctx, "GetListAlert", query, args...)
}

func (r *alertRepository) GetListAlertCount(ctx context.Context, param domain.GetListAlertRequest) (int64, error) {
	where, args := alertFilter(param)

	var count int64
	if err := from(ctx, r.conn).QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_alerts`+where, args...).Scan(&count); err != nil {
		slog.ErrorContext(ctx, "[alertRepository] GetListAlertCount", "queryRowContext", err)
		return 0, domain.PersistenceErr("count alerts", err)
	}
	return count, nil
}
