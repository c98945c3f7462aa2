package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/younes21/PastryLabManager-sub003/pkg/database"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
)

// Lot is a traceable production or reception batch of one article.
// A nil SupplierID means the lot was produced internally. Immutable
// once created except for notes.
type Lot struct {
	ID                string     `db:"id" json:"id"`
	ArticleID         string     `db:"article_id" json:"article_id"`
	Code              string     `db:"code" json:"code"`
	ManufacturingDate time.Time  `db:"manufacturing_date" json:"manufacturing_date"`
	UseDate           *time.Time `db:"use_date" json:"use_date,omitempty"`
	ExpirationDate    *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	AlertDate         *time.Time `db:"alert_date" json:"alert_date,omitempty"`
	SupplierID        *string    `db:"supplier_id" json:"supplier_id,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create inserts a lot inside the caller's transaction
func (r *LotRepository) Create(ctx context.Context, tx *sqlx.Tx, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, article_id, code, manufacturing_date, use_date,
			expiration_date, alert_date, supplier_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		lot.ID, lot.ArticleID, lot.Code, lot.ManufacturingDate, lot.UseDate,
		lot.ExpirationDate, lot.AlertDate, lot.SupplierID, lot.Notes,
	).Scan(&lot.CreatedAt)
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// ListByArticle lists lots of an article, newest first
func (r *LotRepository) ListByArticle(ctx context.Context, articleID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE article_id = $1
		ORDER BY manufacturing_date DESC, code DESC
	`
	if err := r.db.SelectContext(ctx, &lots, query, articleID); err != nil {
		return nil, err
	}
	return lots, nil
}

// LockArticle takes a row lock on the article, serializing daily lot
// sequence computation across concurrent production completions.
func (r *LotRepository) LockArticle(ctx context.Context, tx *sqlx.Tx, articleID string) error {
	var id string
	query := `SELECT id FROM articles WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &id, query, articleID); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("article")
		}
		return err
	}
	return nil
}

// CountForDay counts the article's lots manufactured on the given day.
// Call LockArticle first in the same transaction.
func (r *LotRepository) CountForDay(ctx context.Context, tx *sqlx.Tx, articleID string, day time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM lots
		WHERE article_id = $1 AND manufacturing_date::date = $2::date
	`
	if err := tx.GetContext(ctx, &count, query, articleID, day); err != nil {
		return 0, err
	}
	return count, nil
}

// ListExpiring lists lots whose alert date falls within the window
func (r *LotRepository) ListExpiring(ctx context.Context, withinDays int) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE alert_date IS NOT NULL
		AND alert_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY alert_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}

// UpdateNotes updates the only mutable attribute of a lot
func (r *LotRepository) UpdateNotes(ctx context.Context, id string, notes *string) error {
	query := `UPDATE lots SET notes = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, notes)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}
