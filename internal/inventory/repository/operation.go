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

// Operation types
const (
	OpReception           = "reception"
	OpPreparation         = "preparation"
	OpPreparationReliquat = "preparation_reliquat"
	OpAdjustment          = "adjustment"
	OpAdjustmentWaste     = "adjustment_waste"
	OpInitialInventory    = "initial_inventory"
	OpInternalTransfer    = "internal_transfer"
	OpDelivery            = "delivery"
)

// Operation statuses
const (
	StatusDraft      = "draft"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// InventoryOperation is a typed, stateful unit of inventory work
type InventoryOperation struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	Type            string     `db:"type" json:"type"`
	Status          string     `db:"status" json:"status"`
	ScheduledDate   *time.Time `db:"scheduled_date" json:"scheduled_date,omitempty"`
	Operator        *string    `db:"operator" json:"operator,omitempty"`
	OutputArticleID *string    `db:"output_article_id" json:"output_article_id,omitempty"`
	OutputZoneID    *string    `db:"output_zone_id" json:"output_zone_id,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// OperationItem is one article line of an operation
type OperationItem struct {
	ID                string          `db:"id" json:"id"`
	OperationID       string          `db:"operation_id" json:"operation_id"`
	ArticleID         string          `db:"article_id" json:"article_id"`
	RequestedQuantity decimal.Decimal `db:"requested_quantity" json:"requested_quantity"`
	TargetZoneID      *string         `db:"target_zone_id" json:"target_zone_id,omitempty"`
	LotID             *string         `db:"lot_id" json:"lot_id,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`

	Lines []*OperationItemLine `db:"-" json:"lines,omitempty"`
}

// OperationItemLine is one (lot, zone) allocation of an item's quantity
type OperationItemLine struct {
	ID       string          `db:"id" json:"id"`
	ItemID   string          `db:"item_id" json:"item_id"`
	LotID    *string         `db:"lot_id" json:"lot_id,omitempty"`
	ZoneID   string          `db:"zone_id" json:"zone_id"`
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`
}

// OperationLot links a production operation to a lot it generated
type OperationLot struct {
	ID               string          `db:"id" json:"id"`
	OperationID      string          `db:"operation_id" json:"operation_id"`
	LotID            string          `db:"lot_id" json:"lot_id"`
	ProducedQuantity decimal.Decimal `db:"produced_quantity" json:"produced_quantity"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
}

// OperationFilter narrows operation listings
type OperationFilter struct {
	Type   string
	Status string
}

// OperationRepository handles operation persistence
type OperationRepository struct {
	db *database.DB
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *database.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create inserts an operation with its items and allocation lines
// inside the caller's transaction
func (r *OperationRepository) Create(ctx context.Context, tx *sqlx.Tx, op *InventoryOperation, items []*OperationItem) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_operations (
			id, code, type, status, scheduled_date, operator,
			output_article_id, output_zone_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRowxContext(ctx, query,
		op.ID, op.Code, op.Type, op.Status, op.ScheduledDate, op.Operator,
		op.OutputArticleID, op.OutputZoneID, op.Notes,
	).Scan(&op.CreatedAt, &op.UpdatedAt); err != nil {
		return err
	}

	return r.insertItems(ctx, tx, op.ID, items)
}

func (r *OperationRepository) insertItems(ctx context.Context, tx *sqlx.Tx, operationID string, items []*OperationItem) error {
	itemQuery := `
		INSERT INTO operation_items (id, operation_id, article_id, requested_quantity, target_zone_id, lot_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	lineQuery := `
		INSERT INTO operation_item_lines (id, item_id, lot_id, zone_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OperationID = operationID

		if err := tx.QueryRowxContext(ctx, itemQuery,
			item.ID, operationID, item.ArticleID, item.RequestedQuantity,
			item.TargetZoneID, item.LotID,
		).Scan(&item.CreatedAt); err != nil {
			return err
		}

		for _, line := range item.Lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.ItemID = item.ID
			if _, err := tx.ExecContext(ctx, lineQuery,
				line.ID, item.ID, line.LotID, line.ZoneID, line.Quantity,
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetByID gets an operation with its items and allocation lines
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*InventoryOperation, []*OperationItem, error) {
	var op InventoryOperation
	query := `SELECT * FROM inventory_operations WHERE id = $1`
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("operation")
		}
		return nil, nil, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return &op, items, nil
}

func (r *OperationRepository) loadItems(ctx context.Context, operationID string) ([]*OperationItem, error) {
	var items []*OperationItem
	itemQuery := `SELECT * FROM operation_items WHERE operation_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &items, itemQuery, operationID); err != nil {
		return nil, err
	}

	var lines []*OperationItemLine
	lineQuery := `
		SELECT l.* FROM operation_item_lines l
		JOIN operation_items i ON i.id = l.item_id
		WHERE i.operation_id = $1
	`
	if err := r.db.SelectContext(ctx, &lines, lineQuery, operationID); err != nil {
		return nil, err
	}

	byItem := make(map[string][]*OperationItemLine)
	for _, line := range lines {
		byItem[line.ItemID] = append(byItem[line.ItemID], line)
	}
	for _, item := range items {
		item.Lines = byItem[item.ID]
	}

	return items, nil
}

// List lists operations with optional type/status filters
func (r *OperationRepository) List(ctx context.Context, filter OperationFilter, page, perPage int) ([]*InventoryOperation, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*) FROM inventory_operations
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
	`
	if err := r.db.GetContext(ctx, &total, countQuery, filter.Type, filter.Status); err != nil {
		return nil, 0, err
	}

	var ops []*InventoryOperation
	query := `
		SELECT * FROM inventory_operations
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &ops, query, filter.Type, filter.Status, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// GetForUpdate locks and returns the operation row inside the caller's
// transaction. Status transitions read the current status through here.
func (r *OperationRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*InventoryOperation, error) {
	var op InventoryOperation
	query := `SELECT * FROM inventory_operations WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &op, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("operation")
		}
		return nil, err
	}
	return &op, nil
}

// LoadItemsTx loads items and lines inside the caller's transaction
func (r *OperationRepository) LoadItemsTx(ctx context.Context, tx *sqlx.Tx, operationID string) ([]*OperationItem, error) {
	var items []*OperationItem
	itemQuery := `SELECT * FROM operation_items WHERE operation_id = $1 ORDER BY created_at`
	if err := tx.SelectContext(ctx, &items, itemQuery, operationID); err != nil {
		return nil, err
	}

	var lines []*OperationItemLine
	lineQuery := `
		SELECT l.* FROM operation_item_lines l
		JOIN operation_items i ON i.id = l.item_id
		WHERE i.operation_id = $1
	`
	if err := tx.SelectContext(ctx, &lines, lineQuery, operationID); err != nil {
		return nil, err
	}

	byItem := make(map[string][]*OperationItemLine)
	for _, line := range lines {
		byItem[line.ItemID] = append(byItem[line.ItemID], line)
	}
	for _, item := range items {
		item.Lines = byItem[item.ID]
	}

	return items, nil
}

// UpdateStatus writes a new status inside the caller's transaction
func (r *OperationRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status string) error {
	query := `UPDATE inventory_operations SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("operation")
	}

	return nil
}

// ReplaceItems removes an operation's items and lines and inserts the
// new set, inside the caller's transaction
func (r *OperationRepository) ReplaceItems(ctx context.Context, tx *sqlx.Tx, op *InventoryOperation, items []*OperationItem) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM operation_item_lines WHERE item_id IN (SELECT id FROM operation_items WHERE operation_id = $1)`,
		op.ID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM operation_items WHERE operation_id = $1`, op.ID); err != nil {
		return err
	}

	update := `
		UPDATE inventory_operations SET
			scheduled_date = $2, operator = $3, output_article_id = $4,
			output_zone_id = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		op.ID, op.ScheduledDate, op.Operator, op.OutputArticleID, op.OutputZoneID, op.Notes,
	); err != nil {
		return err
	}

	return r.insertItems(ctx, tx, op.ID, items)
}

// Delete removes the operation with its items and lines inside the
// caller's transaction. Reservations are deleted separately by the
// reservation repository within the same transaction.
func (r *OperationRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM operation_item_lines WHERE item_id IN (SELECT id FROM operation_items WHERE operation_id = $1)`,
		id,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM operation_items WHERE operation_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM operation_lots WHERE operation_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM inventory_operations WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("operation")
	}

	return nil
}

// CreateOperationLot links a generated lot to its producing operation
func (r *OperationRepository) CreateOperationLot(ctx context.Context, tx *sqlx.Tx, ol *OperationLot) error {
	if ol.ID == "" {
		ol.ID = uuid.New().String()
	}

	query := `
		INSERT INTO operation_lots (id, operation_id, lot_id, produced_quantity, notes)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, ol.ID, ol.OperationID, ol.LotID, ol.ProducedQuantity, ol.Notes)
	return err
}

// ListOperationLots lists the lots generated by an operation
func (r *OperationRepository) ListOperationLots(ctx context.Context, operationID string) ([]*OperationLot, error) {
	var lots []*OperationLot
	query := `SELECT * FROM operation_lots WHERE operation_id = $1`
	if err := r.db.SelectContext(ctx, &lots, query, operationID); err != nil {
		return nil, err
	}
	return lots, nil
}

// CountForDay counts operations of a type created on the given day,
// used for sequential operation codes
func (r *OperationRepository) CountForDay(ctx context.Context, tx *sqlx.Tx, opType string, day time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM inventory_operations
		WHERE type = $1 AND created_at::date = $2::date
	`
	if err := tx.GetContext(ctx, &count, query, opType, day); err != nil {
		return 0, err
	}
	return count, nil
}
