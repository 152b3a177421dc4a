package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:?_foreign_keys=on", PoolConfig{MaxOpenConns: 10}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.GetStats().MaxOpenConnections)

	require.NoError(t, Migrate(context.Background(), db, zap.NewNop()))
	// idempotente
	require.NoError(t, Migrate(context.Background(), db, zap.NewNop()))

	var tables []string
	err = db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "item_locations", "items", "locations", "stock_transactions", "suppliers"}, tables)
}

func TestOpen_SnapshotRejectsNegative(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:?_foreign_keys=on", PoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(context.Background(), db, zap.NewNop()))

	_, err = db.Exec(`INSERT INTO item_locations (item_id, location_id, current_quantity, updated_at) VALUES (1, 1, -1, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever", PoolConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestWithStatementTimeout(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://u:p@localhost:5432/db?sslmode=disable", "postgres://u:p@localhost:5432/db?sslmode=disable&statement_timeout=1500"},
		{"url keeps explicit", "postgres://localhost/db?statement_timeout=99", "postgres://localhost/db?statement_timeout=99"},
		{"key value", "host=localhost dbname=db", "host=localhost dbname=db statement_timeout=1500"},
		{"key value keeps explicit", "host=localhost statement_timeout=5", "host=localhost statement_timeout=5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withStatementTimeout(tt.dsn, 1500*time.Millisecond))
		})
	}
}
