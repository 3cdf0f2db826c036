//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fittrack/internal/domain"
)

func TestGatewayWriteThroughAndHydrate(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitness"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	gw := NewGateway(pool)
	require.NoError(t, gw.EnsureSchema(ctx))
	require.NoError(t, gw.EnsureSchema(ctx))

	_, ok, err := gw.Get(ctx, domain.KeyActivities)
	require.NoError(t, err)
	require.False(t, ok)

	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	store := domain.NewStore(gw, domain.WithClock(func() time.Time { return now }))
	rec, res, err := store.AddActivity(ctx, domain.NewActivity{Date: now, Type: "running", Duration: "02:00", Calories: 22, Steps: 300})
	require.NoError(t, err)
	require.True(t, res.Persisted)
	_, err = store.UpdateDailySteps(ctx, 300)
	require.NoError(t, err)
	_, err = store.UpdateDailyGoal(ctx, 12000)
	require.NoError(t, err)

	hydrated := domain.NewStore(gw)
	require.NoError(t, hydrated.Load(ctx))
	require.Equal(t, []domain.ActivityRecord{rec}, hydrated.Activities())
	require.Equal(t, 300, hydrated.DailySteps())
	require.Equal(t, 12000, hydrated.DailyGoal())
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
