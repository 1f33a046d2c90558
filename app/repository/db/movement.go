package db

import (
	"context"
	"database/sql"
	"fmt"
	"inventory-service/app/domain"
	"log/slog"
)

type movementRepository struct {
	conn *sql.DB
}

func NewMovementRepository(db *sql.DB) domain.MovementRepository {
	return &movementRepository{db}
}

func (r *movementRepository) Create(ctx context.Context, m *domain.StockMovement) error {
	query := `INSERT INTO stock_movements (id, product_id, movement_type, quantity_change, quantity_before,
		quantity_after, reference_id, reference_type, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := from(ctx, r.conn).ExecContext(ctx, query, m.ID, m.ProductID, m.MovementType, m.QuantityChange,
		m.QuantityBefore, m.QuantityAfter, m.ReferenceID, m.ReferenceType, m.Reason, m.CreatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[movementRepository] Create", "execContext", err)
		return domain.PersistenceErr("insert movement", err)
	}

	return nil
}

func (r *movementRepository) GetListByProductID(ctx context.Context, productID string, param domain.GetListMovementRequest) ([]domain.StockMovement, error) {
	query := `SELECT id, product_id, movement_type, quantity_change, quantity_before, quantity_after,
		reference_id, reference_type, reason, created_at
	FROM stock_movements WHERE product_id = $1 ORDER BY seq`

	if param.Page > 0 && param.Limit > 0 {
		offset := (param.Page - 1) * param.Limit
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", param.Limit, offset)
	}

	rows, err := from(ctx, r.conn).QueryContext(ctx, query, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[movementRepository] GetListByProductID", "queryContext", err)
		return nil, domain.PersistenceErr("list movements", err)
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.MovementType, &m.QuantityChange, &m.QuantityBefore,
			&m.QuantityAfter, &m.ReferenceID, &m.ReferenceType, &m.Reason, &m.CreatedAt); err != nil {
			slog.ErrorContext(ctx, "[movementRepository] GetListByProductID", "scan", err)
			return nil, domain.PersistenceErr("list movements", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[movementRepository] GetListByProductID", "rowError", err)
		return nil, domain.PersistenceErr("list movements", err)
	}

	return movements, nil
}

func (r *movementRepository) CountByProductID(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := from(ctx, r.conn).QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_movements WHERE product_id = $1`, productID).Scan(&count)
	if err != nil {
		slog.ErrorContext(ctx, "[movementRepository] CountByProductID", "queryRowContext", err)
		return 0, domain.PersistenceErr("count movements", err)
	}
	return count, nil
}

// SumByProductID replays the ledger: the result equals the current stock of a product
// whose initial units were recorded as a movement.
func (r *movementRepository) SumByProductID(ctx context.Context, productID string) (int64, error) {
	var sum int64
	err := from(ctx, r.conn).QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity_change), 0) FROM stock_movements WHERE product_id = $1`, productID).Scan(&sum)
	if err != nil {
		slog.ErrorContext(ctx, "[movementRepository] SumByProductID", "queryRowContext", err)
		return 0, domain.PersistenceErr("sum movements", err)
	}
	return sum, nil
}
