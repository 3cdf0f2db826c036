// Package sqlite stores the aggregate keys in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Gateway is a key-value gateway over a single kv_store table.
type Gateway struct {
	db *sql.DB
}

// Open creates the database file and its parent directory if needed.
func Open(ctx context.Context, dbPath string) (*Gateway, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps write-through order identical to mutation order
	db.SetMaxOpenConns(1)
	gw := &Gateway{db: db}
	if err := gw.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv_store (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := g.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create kv_store table: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (g *Gateway) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := g.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (g *Gateway) Set(ctx context.Context, key, value string) error {
	const stmt = `
INSERT INTO kv_store (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at;
`
	if _, err := g.db.ExecContext(ctx, stmt, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (g *Gateway) Close() error {
	return g.db.Close()
}
