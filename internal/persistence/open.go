package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence/postgres"
	"example.com/fittrack/internal/persistence/sqlite"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a gateway.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
}

// Open constructs the gateway named by opts.Driver and ensures its schema.
// The returned close func releases the underlying connections.
func Open(ctx context.Context, opts Options) (domain.Gateway, func(), error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), func() {}, nil
	case DriverSQLite, "":
		gw, err := sqlite.Open(ctx, opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() { _ = gw.Close() }, nil
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		gw := postgres.NewGateway(pool)
		if err := gw.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return gw, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
