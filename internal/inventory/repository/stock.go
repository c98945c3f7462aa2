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

// StockEntry is the ledger row for an (article, lot-or-none, zone) key.
// It is mutated only when an inventory operation commits.
type StockEntry struct {
	ID        string          `db:"id" json:"id"`
	ArticleID string          `db:"article_id" json:"article_id"`
	LotID     *string         `db:"lot_id" json:"lot_id,omitempty"`
	ZoneID    string          `db:"zone_id" json:"zone_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// StockFilter narrows ledger queries to specific lot/zone scopes
type StockFilter struct {
	LotID  *string
	ZoneID *string
}

// StockRepository is the authoritative ledger of on-hand quantities
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Query returns all ledger entries for an article, optionally filtered
// by lot and zone. Reads are snapshot-isolated and advisory.
func (r *StockRepository) Query(ctx context.Context, articleID string, filter StockFilter) ([]*StockEntry, error) {
	var entries []*StockEntry
	query := `
		SELECT * FROM stock_entries
		WHERE article_id = $1
		AND ($2::uuid IS NULL OR lot_id = $2)
		AND ($3::uuid IS NULL OR zone_id = $3)
		ORDER BY zone_id, lot_id
	`
	if err := r.db.SelectContext(ctx, &entries, query, articleID, filter.LotID, filter.ZoneID); err != nil {
		return nil, err
	}
	return entries, nil
}

// QueryTx is Query inside the caller's transaction, locking the matched
// rows so a concurrent reserve/adjust on the same keys serializes.
func (r *StockRepository) QueryTx(ctx context.Context, tx *sqlx.Tx, articleID string) ([]*StockEntry, error) {
	var entries []*StockEntry
	query := `
		SELECT * FROM stock_entries
		WHERE article_id = $1
		ORDER BY zone_id, lot_id
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &entries, query, articleID); err != nil {
		return nil, err
	}
	return entries, nil
}

// Adjust applies a signed delta to the (article, lot, zone) key, creating
// the row at quantity 0 first if absent. The row is locked for the rest
// of the transaction. A delta that would drive the quantity negative is
// rejected with InsufficientStock and nothing is written.
func (r *StockRepository) Adjust(ctx context.Context, tx *sqlx.Tx, articleID string, lotID *string, zoneID string, delta decimal.Decimal) (*StockEntry, error) {
	entry, err := r.lockEntry(ctx, tx, articleID, lotID, zoneID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = &StockEntry{
			ID:        uuid.New().String(),
			ArticleID: articleID,
			LotID:     lotID,
			ZoneID:    zoneID,
			Quantity:  decimal.Zero,
		}
		insert := `
			INSERT INTO stock_entries (id, article_id, lot_id, zone_id, quantity)
			VALUES ($1, $2, $3, $4, 0)
			RETURNING updated_at
		`
		if err := tx.QueryRowxContext(ctx, insert, entry.ID, articleID, lotID, zoneID).Scan(&entry.UpdatedAt); err != nil {
			return nil, err
		}
	}

	newQty := entry.Quantity.Add(delta)
	if newQty.IsNegative() {
		return nil, errors.InsufficientStock(articleID, map[string]string{
			"zone_id":   zoneID,
			"on_hand":   entry.Quantity.String(),
			"requested": delta.Neg().String(),
		})
	}

	update := `UPDATE stock_entries SET quantity = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRowxContext(ctx, update, entry.ID, newQty).Scan(&entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Quantity = newQty
	return entry, nil
}

// lockEntry fetches the ledger row for a key with FOR UPDATE. NULL lot
// is part of the key, hence IS NOT DISTINCT FROM.
func (r *StockRepository) lockEntry(ctx context.Context, tx *sqlx.Tx, articleID string, lotID *string, zoneID string) (*StockEntry, error) {
	var entry StockEntry
	query := `
		SELECT * FROM stock_entries
		WHERE article_id = $1 AND lot_id IS NOT DISTINCT FROM $2 AND zone_id = $3
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &entry, query, articleID, lotID, zoneID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// TotalOnHand returns the summed on-hand quantity for an article
func (r *StockRepository) TotalOnHand(ctx context.Context, articleID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `SELECT SUM(quantity) FROM stock_entries WHERE article_id = $1`
	if err := r.db.GetContext(ctx, &total, query, articleID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
