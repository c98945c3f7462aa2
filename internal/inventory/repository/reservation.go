package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/pkg/database"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
)

// Reservation statuses
const (
	ReservationActive    = "active"
	ReservationReleased  = "released"
	ReservationDelivered = "delivered"
	ReservationCancelled = "cancelled"
)

// Reservation is a provisional hold of quantity against future stock
// availability, owned by exactly one (operation, article) pair and
// optionally scoped to a (lot, zone) combination.
type Reservation struct {
	ID                string          `db:"id" json:"id"`
	OperationID       string          `db:"operation_id" json:"operation_id"`
	ArticleID         string          `db:"article_id" json:"article_id"`
	LotID             *string         `db:"lot_id" json:"lot_id,omitempty"`
	ZoneID            *string         `db:"zone_id" json:"zone_id,omitempty"`
	ReservedQuantity  decimal.Decimal `db:"reserved_quantity" json:"reserved_quantity"`
	DeliveredQuantity decimal.Decimal `db:"delivered_quantity" json:"delivered_quantity"`
	Status            string          `db:"status" json:"status"`
	ReservationType   string          `db:"reservation_type" json:"reservation_type"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt         *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
}

// ReservationRepository handles reservation persistence
type ReservationRepository struct {
	db *database.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts an active reservation inside the caller's transaction.
// Availability must have been validated against locked stock rows in the
// same transaction.
func (r *ReservationRepository) Create(ctx context.Context, tx *sqlx.Tx, res *Reservation) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.Status == "" {
		res.Status = ReservationActive
	}

	query := `
		INSERT INTO reservations (
			id, operation_id, article_id, lot_id, zone_id,
			reserved_quantity, delivered_quantity, status, reservation_type, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		res.ID, res.OperationID, res.ArticleID, res.LotID, res.ZoneID,
		res.ReservedQuantity, res.DeliveredQuantity, res.Status, res.ReservationType, res.ExpiresAt,
	).Scan(&res.CreatedAt)
}

// GetByID gets a reservation by ID
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	var res Reservation
	query := `SELECT * FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("reservation")
		}
		return nil, err
	}
	return &res, nil
}

// ListByOperation lists all reservations owned by an operation
func (r *ReservationRepository) ListByOperation(ctx context.Context, operationID string) ([]*Reservation, error) {
	var reservations []*Reservation
	query := `
		SELECT * FROM reservations
		WHERE operation_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &reservations, query, operationID); err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListActiveByArticle lists active reservations for an article,
// omitting those owned by excludeOperationID when set. Used by the
// availability calculator while an operation is being edited.
func (r *ReservationRepository) ListActiveByArticle(ctx context.Context, articleID string, excludeOperationID *string) ([]*Reservation, error) {
	var reservations []*Reservation
	query := `
		SELECT * FROM reservations
		WHERE article_id = $1 AND status = $2
		AND ($3::uuid IS NULL OR operation_id <> $3)
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &reservations, query, articleID, ReservationActive, excludeOperationID); err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListActiveByArticleTx is ListActiveByArticle inside the caller's
// transaction, used when availability backs a write.
func (r *ReservationRepository) ListActiveByArticleTx(ctx context.Context, tx *sqlx.Tx, articleID string, excludeOperationID *string) ([]*Reservation, error) {
	var reservations []*Reservation
	query := `
		SELECT * FROM reservations
		WHERE article_id = $1 AND status = $2
		AND ($3::uuid IS NULL OR operation_id <> $3)
		ORDER BY created_at
	`
	if err := tx.SelectContext(ctx, &reservations, query, articleID, ReservationActive, excludeOperationID); err != nil {
		return nil, err
	}
	return reservations, nil
}

// Release marks a reservation with a terminal status without deleting
// history.
func (r *ReservationRepository) Release(ctx context.Context, tx *sqlx.Tx, id string, status string) error {
	query := `UPDATE reservations SET status = $2 WHERE id = $1 AND status = $3`
	result, err := tx.ExecContext(ctx, query, id, status, ReservationActive)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("active reservation")
	}

	return nil
}

// ReleaseAllForOperation marks every active reservation owned by an
// operation with a terminal status. Used on cancel/complete transitions.
func (r *ReservationRepository) ReleaseAllForOperation(ctx context.Context, tx *sqlx.Tx, operationID string, status string) (int64, error) {
	query := `UPDATE reservations SET status = $2 WHERE operation_id = $1 AND status = $3`
	result, err := tx.ExecContext(ctx, query, operationID, status, ReservationActive)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteAllForOperation hard-deletes every reservation owned by an
// operation. Used only when the operation itself is deleted (cascade).
func (r *ReservationRepository) DeleteAllForOperation(ctx context.Context, tx *sqlx.Tx, operationID string) (int64, error) {
	query := `DELETE FROM reservations WHERE operation_id = $1`
	result, err := tx.ExecContext(ctx, query, operationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecordDelivery adds a partial delivery to the delivered quantity of
// a reservation. The hold stays active until the accumulated total
// covers the reserved quantity or the owning operation completes.
func (r *ReservationRepository) RecordDelivery(ctx context.Context, tx *sqlx.Tx, id string, delivered decimal.Decimal) error {
	var res Reservation
	query := `SELECT * FROM reservations WHERE id = $1 AND status = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &res, query, id, ReservationActive); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("active reservation")
		}
		return err
	}

	total := res.DeliveredQuantity.Add(delivered)
	if total.GreaterThan(res.ReservedQuantity) {
		return errors.BadRequest("delivered quantity would exceed the reserved quantity")
	}

	status := ReservationActive
	if total.GreaterThanOrEqual(res.ReservedQuantity) {
		status = ReservationDelivered
	}

	update := `UPDATE reservations SET delivered_quantity = $2, status = $3 WHERE id = $1`
	_, err := tx.ExecContext(ctx, update, id, total, status)
	return err
}
