// Package testutil provides testing utilities for the inventory service.
// It includes a testcontainers PostgreSQL instance, fixture factories,
// sqlmock helpers and common assertion helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "pastrylab_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "pastrylab_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateInventorySchema creates the inventory service tables. Constraint
// names match the mapping in pkg/database so constraint violations
// surface as domain errors in tests exactly as they do in production.
func (c *PostgresContainer) CreateInventorySchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS articles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(20) NOT NULL DEFAULT 'kg',
			is_perishable BOOLEAN NOT NULL DEFAULT false,
			shelf_life_days INT,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS storage_zones (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			capacity NUMERIC(14,3),
			capacity_unit VARCHAR(20),
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			article_id UUID NOT NULL REFERENCES articles(id),
			code VARCHAR(100) NOT NULL,
			manufacturing_date TIMESTAMPTZ NOT NULL,
			use_date TIMESTAMPTZ,
			expiration_date TIMESTAMPTZ,
			alert_date TIMESTAMPTZ,
			supplier_id UUID,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT lots_code UNIQUE (code)
		);

		CREATE TABLE IF NOT EXISTS stock_entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			article_id UUID NOT NULL REFERENCES articles(id),
			lot_id UUID REFERENCES lots(id),
			zone_id UUID NOT NULL REFERENCES storage_zones(id),
			quantity NUMERIC(14,3) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT quantity_non_negative CHECK (quantity >= 0)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS stock_entries_article_lot_zone
			ON stock_entries (article_id, zone_id, COALESCE(lot_id, '00000000-0000-0000-0000-000000000000'::uuid));

		CREATE TABLE IF NOT EXISTS inventory_operations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) NOT NULL,
			type VARCHAR(30) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			scheduled_date TIMESTAMPTZ,
			operator VARCHAR(255),
			output_article_id UUID REFERENCES articles(id),
			output_zone_id UUID REFERENCES storage_zones(id),
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT operations_code UNIQUE (code),
			CONSTRAINT operation_type_valid CHECK (type IN (
				'reception', 'preparation', 'preparation_reliquat', 'adjustment',
				'adjustment_waste', 'initial_inventory', 'internal_transfer', 'delivery'
			)),
			CONSTRAINT status_valid CHECK (status IN (
				'draft', 'pending', 'in_progress', 'completed', 'cancelled'
			))
		);

		CREATE TABLE IF NOT EXISTS operation_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			operation_id UUID NOT NULL REFERENCES inventory_operations(id),
			article_id UUID NOT NULL REFERENCES articles(id),
			requested_quantity NUMERIC(14,3) NOT NULL,
			target_zone_id UUID REFERENCES storage_zones(id),
			lot_id UUID REFERENCES lots(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS operation_item_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			item_id UUID NOT NULL REFERENCES operation_items(id),
			lot_id UUID REFERENCES lots(id),
			zone_id UUID NOT NULL REFERENCES storage_zones(id),
			quantity NUMERIC(14,3) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS operation_lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			operation_id UUID NOT NULL REFERENCES inventory_operations(id),
			lot_id UUID NOT NULL REFERENCES lots(id),
			produced_quantity NUMERIC(14,3) NOT NULL,
			notes TEXT
		);

		CREATE TABLE IF NOT EXISTS reservations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			operation_id UUID NOT NULL REFERENCES inventory_operations(id),
			article_id UUID NOT NULL REFERENCES articles(id),
			lot_id UUID REFERENCES lots(id),
			zone_id UUID REFERENCES storage_zones(id),
			reserved_quantity NUMERIC(14,3) NOT NULL,
			delivered_quantity NUMERIC(14,3) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			reservation_type VARCHAR(30) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			CONSTRAINT reserved_quantity_positive CHECK (reserved_quantity > 0)
		);

		CREATE INDEX IF NOT EXISTS reservations_article_status
			ON reservations (article_id, status);
		CREATE INDEX IF NOT EXISTS reservations_operation
			ON reservations (operation_id);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create inventory schema: %w", err)
	}

	return nil
}

// TruncateAll empties every inventory table between tests
func (c *PostgresContainer) TruncateAll(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE reservations, operation_lots, operation_item_lines,
			operation_items, inventory_operations, stock_entries,
			lots, storage_zones, articles CASCADE
	`)
	return err
}
