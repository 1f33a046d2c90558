package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"log/slog"
)

const stockColumns = `product_id, available_units, reserved_units, stock_status, low_stock_threshold,
	max_stock_level, last_restocked_at, version, created_at, updated_at`

// stockSortColumns whitelists the sort_by values accepted from callers.
var stockSortColumns = map[string]string{
	"product_id":      "product_id",
	"available_units": "available_units",
	"updated_at":      "updated_at",
}

type stockRepository struct {
	conn *sql.DB
}

func NewStockRepository(db *sql.DB) domain.StockRepository {
	return &stockRepository{db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (domain.StockLevel, error) {
	var (
		level       domain.StockLevel
		restockedAt sql.NullTime
	)
	err := row.Scan(&level.ProductID, &level.AvailableUnits, &level.ReservedUnits, &level.StockStatus,
		&level.LowStockThreshold, &level.MaxStockLevel, &restockedAt, &level.Version,
		&level.CreatedAt, &level.UpdatedAt)
	level.LastRestockedAt = timePtr(restockedAt)
	return level, err
}

func (r *stockRepository) Create(ctx context.Context, level *domain.StockLevel) error {
	query := `INSERT INTO stock_levels (` + stockColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	ON CONFLICT (product_id) DO NOTHING`

	res, err := from(ctx, r.conn).ExecContext(ctx, query, level.ProductID, level.AvailableUnits, level.ReservedUnits,
		level.StockStatus, level.LowStockThreshold, level.MaxStockLevel, level.LastRestockedAt,
		level.CreatedAt, level.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[stockRepository] Create", "execContext", err)
		return domain.PersistenceErr("insert stock level", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "[stockRepository] Create", "rowsAffected", err)
		return domain.PersistenceErr("insert stock level", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %s already tracked", domain.ErrInvalidRequest, level.ProductID)
	}

	level.Version = 1
	return nil
}

func (r *stockRepository) GetByProductID(ctx context.Context, productID string) (domain.StockLevel, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_levels WHERE product_id = $1`

	level, err := scanStock(from(ctx, r.conn).QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return level, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[stockRepository] GetByProductID", "queryRowContext", err)
		return level, domain.PersistenceErr("get stock level", err)
	}

	return level, nil
}

// LockForUpdate takes the row lock for the rest of the transaction carried by ctx.
func (r *stockRepository) LockForUpdate(ctx context.Context, productID string) (domain.StockLevel, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_levels WHERE product_id = $1 FOR UPDATE`

	level, err := scanStock(from(ctx, r.conn).QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return level, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[stockRepository] LockForUpdate", "queryRowContext", err)
		return level, domain.PersistenceErr("lock stock level", err)
	}

	return level, nil
}

func (r *stockRepository) Update(ctx context.Context, level *domain.StockLevel) error {
	query := `UPDATE stock_levels
	SET available_units = $2, reserved_units = $3, stock_status = $4, low_stock_threshold = $5,
		max_stock_level = $6, last_restocked_at = $7, updated_at = $8, version = version + 1
	WHERE product_id = $1 AND version = $9`

	res, err := from(ctx, r.conn).ExecContext(ctx, query, level.ProductID, level.AvailableUnits, level.ReservedUnits,
		level.StockStatus, level.LowStockThreshold, level.MaxStockLevel, level.LastRestockedAt,
		level.UpdatedAt, level.Version)
	if err != nil {
		slog.ErrorContext(ctx, "[stockRepository] Update", "execContext", err)
		return domain.PersistenceErr("update stock level", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "[stockRepository] Update", "rowsAffected", err)
		return domain.PersistenceErr("update stock level", err)
	}
	if rowsAffected == 0 {
		slog.WarnContext(ctx, "[stockRepository] Update", "versionMismatch", level.ProductID, "version", level.Version)
		return domain.ErrConcurrencyConflict
	}

	level.Version++
	return nil
}

func stockFilter(param domain.GetListStockRequest) (string, []any) {
	where := ` WHERE 1 = 1`
	var args []any
	if param.Status != "" {
		args = append(args, param.Status)
		where += fmt.Sprintf(" AND stock_status = $%d", len(args))
	}
	if param.LowStock {
		where += fmt.Sprintf(" AND stock_status <> '%s'", domain.StockStatusInStock)
	}
	return where, args
}

func (r *stockRepository) GetListStock(ctx context.Context, param domain.GetListStockRequest) ([]domain.StockLevel, error) {
	where, args := stockFilter(param)
	query := `SELECT ` + stockColumns + ` FROM stock_levels` + where

	column, ok := stockSortColumns[param.SortBy]
	if !ok {
		column = "product_id"
	}
	order := "ASC"
	if param.SortOrder == "desc" {
		order = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, product_id", column, order)

	if param.Page > 0 && param.Limit > 0 {
		offset := (param.Page - 1) * param.Limit
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", param.Limit, offset)
	}

	rows, err := from(ctx, r.conn).QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "[stockRepository] GetListStock", "queryContext", err)
		return nil, domain.PersistenceErr("list stock levels", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		level, err := scanStock(rows)
		if err != nil {
			slog.ErrorContext(ctx, "[stockRepository] GetListStock", "scan", err)
			return nil, domain.PersistenceErr("list stock levels", err)
		}
		levels = append(levels, level)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[stockRepository] GetListStock", "rowError", err)
		return nil, domain.PersistenceErr("list stock levels", err)
	}

	return levels, nil
}

func (r *stockRepository) GetListStockCount(ctx context.Context, param domain.GetListStockRequest) (int64, error) {
	where, args := stockFilter(param)
	query := `SELECT COUNT(*) FROM stock_levels` + where

	var count int64
	if err := from(ctx, r.conn).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		slog.ErrorContext(ctx, "[stockRepository] GetListStockCount", "queryRowContext", err)
		return 0, domain.PersistenceErr("count stock levels", err)
	}

	return count, nil
}
