package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ArticleFixture represents test article data
type ArticleFixture struct {
	ID            string
	Code          string
	Name          string
	Unit          string
	IsPerishable  bool
	ShelfLifeDays *int
	IsActive      bool
}

// ZoneFixture represents test storage zone data
type ZoneFixture struct {
	ID       string
	Code     string
	Name     string
	IsActive bool
}

// LotFixture represents test lot data
type LotFixture struct {
	ID                string
	ArticleID         string
	Code              string
	ManufacturingDate time.Time
	ExpirationDate    *time.Time
}

// StockFixture represents one ledger row
type StockFixture struct {
	ID        string
	ArticleID string
	LotID     *string
	ZoneID    string
	Quantity  decimal.Decimal
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Article creates an article fixture with defaults
func (f *FixtureFactory) Article(opts ...func(*ArticleFixture)) ArticleFixture {
	seq := f.nextSeq()

	article := ArticleFixture{
		ID:       uuid.New().String(),
		Code:     fmt.Sprintf("ART-%04d", seq),
		Name:     fmt.Sprintf("Test Article %d", seq),
		Unit:     "kg",
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&article)
	}

	return article
}

// WithShelfLife marks the article perishable with the given shelf life
func WithShelfLife(days int) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.IsPerishable = true
		a.ShelfLifeDays = &days
	}
}

// WithCode sets the article code
func WithCode(code string) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.Code = code
	}
}

// Zone creates a storage zone fixture with defaults
func (f *FixtureFactory) Zone(opts ...func(*ZoneFixture)) ZoneFixture {
	seq := f.nextSeq()

	zone := ZoneFixture{
		ID:       uuid.New().String(),
		Code:     fmt.Sprintf("ZONE-%02d", seq),
		Name:     fmt.Sprintf("Test Zone %d", seq),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&zone)
	}

	return zone
}

// Lot creates a lot fixture for the given article
func (f *FixtureFactory) Lot(articleID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()

	lot := LotFixture{
		ID:                uuid.New().String(),
		ArticleID:         articleID,
		Code:              fmt.Sprintf("LOT-%04d", seq),
		ManufacturingDate: time.Now().AddDate(0, 0, -1),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithExpiration sets the lot expiration date
func WithExpiration(t time.Time) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ExpirationDate = &t
	}
}

// Stock creates a stock entry fixture
func (f *FixtureFactory) Stock(articleID string, lotID *string, zoneID string, quantity string) StockFixture {
	return StockFixture{
		ID:        uuid.New().String(),
		ArticleID: articleID,
		LotID:     lotID,
		ZoneID:    zoneID,
		Quantity:  decimal.RequireFromString(quantity),
	}
}

// InsertArticle persists an article fixture
func (f *FixtureFactory) InsertArticle(ctx context.Context, db *sqlx.DB, a ArticleFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO articles (id, code, name, unit, is_perishable, shelf_life_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Code, a.Name, a.Unit, a.IsPerishable, a.ShelfLifeDays, a.IsActive)
	return err
}

// InsertZone persists a zone fixture
func (f *FixtureFactory) InsertZone(ctx context.Context, db *sqlx.DB, z ZoneFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO storage_zones (id, code, name, is_active)
		VALUES ($1, $2, $3, $4)
	`, z.ID, z.Code, z.Name, z.IsActive)
	return err
}

// InsertLot persists a lot fixture
func (f *FixtureFactory) InsertLot(ctx context.Context, db *sqlx.DB, l LotFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO lots (id, article_id, code, manufacturing_date, expiration_date)
		VALUES ($1, $2, $3, $4, $5)
	`, l.ID, l.ArticleID, l.Code, l.ManufacturingDate, l.ExpirationDate)
	return err
}

// InsertStock persists a stock entry fixture
func (f *FixtureFactory) InsertStock(ctx context.Context, db *sqlx.DB, s StockFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_entries (id, article_id, lot_id, zone_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.ArticleID, s.LotID, s.ZoneID, s.Quantity)
	return err
}
