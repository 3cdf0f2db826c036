// Package postgres stores the aggregate keys in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Gateway provides Postgres-backed key-value persistence.
type Gateway struct {
	pool *pgxpool.Pool
}

// NewGateway constructs a Gateway.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// EnsureSchema creates the kv_store table when missing.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create kv_store table: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (g *Gateway) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := g.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (g *Gateway) Set(ctx context.Context, key, value string) error {
	const stmt = `INSERT INTO kv_store (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	if _, err := g.pool.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
