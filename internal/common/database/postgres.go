// Package database provides the connection wrappers for the service's
// storage backends. The wrappers own connection setup, pooling, and
// liveness checks; handlers work against the underlying handles.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"opposite-match-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient holds the pooled connection to the respondent store.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a connection pool against the configured database.
// The connection is not verified here; call Ping before first use.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping verifies the database is reachable.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close releases the connection pool.
func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// GetDB exposes the raw handle for handlers and tests.
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
