package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/younes21/PastryLabManager-sub003/pkg/database"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
)

// Article represents a trackable product or ingredient. Master data is
// owned by the generic CRUD layer; this service only reads it.
type Article struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	Unit          string    `db:"unit" json:"unit"`
	IsPerishable  bool      `db:"is_perishable" json:"is_perishable"`
	ShelfLifeDays *int      `db:"shelf_life_days" json:"shelf_life_days,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StorageZone represents a named physical location
type StorageZone struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Capacity     *float64  `db:"capacity" json:"capacity,omitempty"`
	CapacityUnit *string   `db:"capacity_unit" json:"capacity_unit,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ArticleRepository handles article and storage zone lookups
type ArticleRepository struct {
	db *database.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *database.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// GetByID gets an article by ID
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*Article, error) {
	var article Article
	query := `SELECT * FROM articles WHERE id = $1`
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("article")
		}
		return nil, err
	}
	return &article, nil
}

// List lists active articles
func (r *ArticleRepository) List(ctx context.Context, page, perPage int) ([]*Article, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM articles WHERE is_active = true`); err != nil {
		return nil, 0, err
	}

	var articles []*Article
	query := `
		SELECT * FROM articles
		WHERE is_active = true
		ORDER BY code
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &articles, query, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// GetZoneByID gets a storage zone by ID
func (r *ArticleRepository) GetZoneByID(ctx context.Context, id string) (*StorageZone, error) {
	var zone StorageZone
	query := `SELECT * FROM storage_zones WHERE id = $1`
	if err := r.db.GetContext(ctx, &zone, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("storage zone")
		}
		return nil, err
	}
	return &zone, nil
}

// ListZones lists active storage zones
func (r *ArticleRepository) ListZones(ctx context.Context) ([]*StorageZone, error) {
	var zones []*StorageZone
	query := `SELECT * FROM storage_zones WHERE is_active = true ORDER BY code`
	if err := r.db.SelectContext(ctx, &zones, query); err != nil {
		return nil, err
	}
	return zones, nil
}
