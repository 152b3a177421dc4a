package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Migrate crea el esquema si no existe. Para producción conviene una
// herramienta de migraciones versionadas; esto cubre el arranque y los tests.
func Migrate(ctx context.Context, db *DB, logger *zap.Logger) error {
	statements := postgresSchema
	if db.Driver == DriverSQLite {
		statements = sqliteSchema
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}

	logger.Info("Database schema ready",
		zap.String("driver", db.Driver),
		zap.Int("statements", len(statements)),
	)
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(128) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id               BIGSERIAL PRIMARY KEY,
		sku              VARCHAR(64) NOT NULL UNIQUE,
		name             VARCHAR(255) NOT NULL,
		barcode          VARCHAR(128) UNIQUE,
		cost             NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (cost >= 0),
		price            NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (price >= 0),
		item_type        VARCHAR(64) NOT NULL DEFAULT '',
		brand            VARCHAR(128) NOT NULL DEFAULT '',
		category_id      BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		minimum_quantity INTEGER NOT NULL DEFAULT 0 CHECK (minimum_quantity >= 0),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(128) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		parent_id   BIGINT REFERENCES locations(id),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id           BIGSERIAL PRIMARY KEY,
		name         VARCHAR(255) NOT NULL,
		code         VARCHAR(64) NOT NULL DEFAULT '',
		contact_name VARCHAR(255) NOT NULL DEFAULT '',
		email        VARCHAR(255) NOT NULL DEFAULT '',
		phone        VARCHAR(64) NOT NULL DEFAULT '',
		address      TEXT NOT NULL DEFAULT '',
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		id               BIGSERIAL PRIMARY KEY,
		created_at       TIMESTAMPTZ NOT NULL,
		item_id          BIGINT NOT NULL REFERENCES items(id),
		tx_type          VARCHAR(16) NOT NULL CHECK (tx_type IN ('stock_in', 'stock_out', 'adjust', 'move')),
		quantity         INTEGER NOT NULL CHECK (quantity >= 0),
		from_location_id BIGINT REFERENCES locations(id),
		to_location_id   BIGINT REFERENCES locations(id),
		supplier_id      BIGINT REFERENCES suppliers(id),
		unit_cost        NUMERIC(14,4),
		memo             TEXT NOT NULL DEFAULT '',
		created_by       BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_item ON stock_transactions(item_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_from ON stock_transactions(from_location_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_to ON stock_transactions(to_location_id)`,
	`CREATE TABLE IF NOT EXISTS item_locations (
		item_id          BIGINT NOT NULL REFERENCES items(id),
		location_id      BIGINT NOT NULL REFERENCES locations(id),
		current_quantity INTEGER NOT NULL DEFAULT 0 CHECK (current_quantity >= 0),
		updated_at       TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (item_id, location_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_item_locations_location ON item_locations(location_id)`,
}

// sqliteSchema mismo modelo; decimales como TEXT para no perder precisión
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		sku              TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL,
		barcode          TEXT UNIQUE,
		cost             TEXT NOT NULL DEFAULT '0',
		price            TEXT NOT NULL DEFAULT '0',
		item_type        TEXT NOT NULL DEFAULT '',
		brand            TEXT NOT NULL DEFAULT '',
		category_id      INTEGER REFERENCES categories(id) ON DELETE SET NULL,
		minimum_quantity INTEGER NOT NULL DEFAULT 0 CHECK (minimum_quantity >= 0),
		is_active        BOOLEAN NOT NULL DEFAULT 1,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		parent_id   INTEGER REFERENCES locations(id),
		is_active   BOOLEAN NOT NULL DEFAULT 1,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		code         TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		address      TEXT NOT NULL DEFAULT '',
		is_active    BOOLEAN NOT NULL DEFAULT 1,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at       DATETIME NOT NULL,
		item_id          INTEGER NOT NULL REFERENCES items(id),
		tx_type          TEXT NOT NULL CHECK (tx_type IN ('stock_in', 'stock_out', 'adjust', 'move')),
		quantity         INTEGER NOT NULL CHECK (quantity >= 0),
		from_location_id INTEGER REFERENCES locations(id),
		to_location_id   INTEGER REFERENCES locations(id),
		supplier_id      INTEGER REFERENCES suppliers(id),
		unit_cost        TEXT,
		memo             TEXT NOT NULL DEFAULT '',
		created_by       INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_item ON stock_transactions(item_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_from ON stock_transactions(from_location_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_to ON stock_transactions(to_location_id)`,
	`CREATE TABLE IF NOT EXISTS item_locations (
		item_id          INTEGER NOT NULL REFERENCES items(id),
		location_id      INTEGER NOT NULL REFERENCES locations(id),
		current_quantity INTEGER NOT NULL DEFAULT 0 CHECK (current_quantity >= 0),
		updated_at       DATETIME NOT NULL,
		PRIMARY KEY (item_id, location_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_item_locations_location ON item_locations(location_id)`,
}
