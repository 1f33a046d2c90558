package db

import (
	"context"
	"database/sql"
	"errors"
	"inventory-service/app/domain"
	"log/slog"
	"time"
)

const reservationColumns = `id, cart_id, session_id, user_id, product_id, quantity_reserved, expires_at,
	is_active, converted_to_order, order_id, released_at, created_at, updated_at`

type reservationRepository struct {
	conn *sql.DB
}

func NewReservationRepository(db *sql.DB) domain.ReservationRepository {
	return &reservationRepository{db}
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var (
		res        domain.Reservation
		userID     sql.NullString
		orderID    sql.NullString
		releasedAt sql.NullTime
	)
	err := row.Scan(&res.ID, &res.CartID, &res.SessionID, &userID, &res.ProductID, &res.QuantityReserved,
		&res.ExpiresAt, &res.IsActive, &res.ConvertedToOrder, &orderID, &releasedAt, &res.CreatedAt, &res.UpdatedAt)
	if userID.Valid {
		res.UserID = &userID.String
	}
	if orderID.Valid {
		res.OrderID = &orderID.String
	}
	res.ReleasedAt = timePtr(releasedAt)
	return res, err
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	query := `INSERT INTO cart_reservations (` + reservationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := from(ctx, r.conn).ExecContext(ctx, query, res.ID, res.CartID, res.SessionID, res.UserID, res.ProductID,
		res.QuantityReserved, res.ExpiresAt, res.IsActive, res.ConvertedToOrder, res.OrderID, res.ReleasedAt,
		res.CreatedAt, res.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] Create", "execContext", err)
		return domain.PersistenceErr("insert reservation", err)
	}
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM cart_reservations WHERE id = $1`

	res, err := scanReservation(from(ctx, r.conn).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[reservationRepository] GetByID", "queryRowContext", err)
		return res, domain.PersistenceErr("get reservation", err)
	}
	return res, nil
}

func (r *reservationRepository) GetActiveByCartID(ctx context.Context, cartID string) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM cart_reservations
	WHERE cart_id = $1 AND is_active AND NOT converted_to_order
	ORDER BY created_at`
	return r.list(ctx, "GetActiveByCartID", query, cartID)
}

func (r *reservationRepository) GetExpired(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM cart_reservations
	WHERE is_active AND NOT converted_to_order AND expires_at < $1
	ORDER BY expires_at
	LIMIT $2`
	return r.list(ctx, "GetExpired", query, before, limit)
}

func (r *reservationRepository) list(ctx context.Context, method, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := from(ctx, r.conn).QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] "+method, "queryContext", err)
		return nil, domain.PersistenceErr("list reservations", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationRepository] "+method, "scan", err)
			return nil, domain.PersistenceErr("list reservations", err)
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] "+method, "rowError", err)
		return nil, domain.PersistenceErr("list reservations", err)
	}
	return reservations, nil
}

// Deactivate and MarkConverted only touch rows still holding stock, so of two racing
// callers exactly one sees true.
func (r *reservationRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE cart_reservations SET is_active = FALSE, released_at = $2, updated_at = $2
	WHERE id = $1 AND is_active AND NOT converted_to_order`
	return r.transition(ctx, "Deactivate", query, id, at)
}

func (r *reservationRepository) MarkConverted(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	query := `UPDATE cart_reservations
	SET is_active = FALSE, converted_to_order = TRUE, order_id = $2, released_at = $3, updated_at = $3
	WHERE id = $1 AND is_active AND NOT converted_to_order`
	return r.transition(ctx, "MarkConverted", query, id, orderID, at)
}

func (r *reservationRepository) transition(ctx context.Context, method, query string, args ...any) (bool, error) {
	res, err := from(ctx, r.conn).ExecContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] "+method, "execContext", err)
		return false, domain.PersistenceErr("update reservation", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] "+method, "rowsAffected", err)
		return false, domain.PersistenceErr("update reservation", err)
	}
	return rowsAffected == 1, nil
}
