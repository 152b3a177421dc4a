package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB pool de conexiones sqlx más el driver con que se abrió
type DB struct {
	*sqlx.DB
	Driver string
}

// PoolConfig parámetros del pool
type PoolConfig struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	// StatementTimeout se aplica como statement_timeout de Postgres
	StatementTimeout time.Duration
}

// Open abre la base, configura el pool y verifica la conexión.
// Con sqlite3 el pool se limita a una conexión (":memory:" es por conexión).
func Open(driver, dsn string, pool PoolConfig, logger *zap.Logger) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if driver == DriverPostgres && pool.StatementTimeout > 0 {
		dsn = withStatementTimeout(dsn, pool.StatementTimeout)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		pool.MaxOpenConns, pool.MaxIdleConns, pool.ConnMaxLifetime = 1, 1, 0
	}

	// Configurar connection pooling
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("driver", driver),
		zap.Int("max_open_conns", pool.MaxOpenConns),
		zap.Int("max_idle_conns", pool.MaxIdleConns),
		zap.Duration("conn_max_lifetime", pool.ConnMaxLifetime),
		zap.Duration("statement_timeout", pool.StatementTimeout),
	)

	return &DB{DB: db, Driver: driver}, nil
}

// GetStats retorna estadísticas del pool de conexiones
func (d *DB) GetStats() sql.DBStats {
	return d.DB.Stats()
}

// withStatementTimeout agrega statement_timeout (ms) al DSN, en formato URL o key=value.
// lib/pq pasa los parámetros desconocidos al servidor como runtime parameters.
func withStatementTimeout(dsn string, timeout time.Duration) string {
	ms := fmt.Sprintf("%d", timeout.Milliseconds())
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		if q.Get("statement_timeout") == "" {
			q.Set("statement_timeout", ms)
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
	if strings.Contains(dsn, "statement_timeout=") {
		return dsn
	}
	return strings.TrimSpace(dsn + " statement_timeout=" + ms)
}
