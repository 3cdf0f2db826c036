package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/notify"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreDriver:    "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "fittrack.db"),
		MotionSource:   config.MotionPush,
		SampleInterval: 100 * time.Millisecond,
		StepThreshold:  1.2,
		StepMinDelay:   100 * time.Millisecond,
		ReminderHour:   20,
		ActivityTopic:  "fitness_events",
	}
}

func TestFinishedSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	quiet := WithLogger(log.New(io.Discard, "", 0))

	a, err := New(ctx, cfg, quiet, WithNotifier(notify.NoopNotifier{}))
	require.NoError(t, err)
	require.NotNil(t, a.Hub)
	require.Nil(t, a.Outbox, "no brokers means no outbox")

	require.NoError(t, a.Session.SetActivityType("running"))
	require.NoError(t, a.Session.Start())
	at := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		at = at.Add(200 * time.Millisecond)
		require.Equal(t, 1, a.Hub.Push(motion.Sample{X: 0, Y: 0.2, Z: 1.6, T: at}))
	}
	for i := 0; i < 60; i++ {
		a.Session.Timer().Tick()
	}

	res, err := a.Session.Finish(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, res.Record.Steps)
	require.Equal(t, 11, res.Record.Calories)

	_, err = a.Service.SetDailyGoal(ctx, 12000)
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	reopened, err := New(ctx, cfg, quiet, WithNotifier(notify.NoopNotifier{}))
	require.NoError(t, err)
	defer reopened.Close(ctx)

	require.Len(t, reopened.Store.Activities(), 1)
	require.Equal(t, 25, reopened.Store.DailySteps())
	require.Equal(t, 12000, reopened.Store.DailyGoal())
}

func TestDefaultSchedulerArmsReminder(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.StoreDriver = "memory"
	cfg.MotionSource = config.MotionSimulated

	a, err := New(ctx, cfg, WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	require.Nil(t, a.Hub)

	next, ok := a.scheduler.Next()
	require.True(t, ok)
	require.Equal(t, 20, next.Hour())
	require.NoError(t, a.Close(ctx))

	_, ok = a.scheduler.Next()
	require.False(t, ok, "Close cancels the pending reminder")
}

func TestUnknownMotionSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "memory"
	cfg.MotionSource = "bluetooth"

	_, err := New(context.Background(), cfg, WithLogger(log.New(io.Discard, "", 0)), WithNotifier(notify.NoopNotifier{}))
	require.ErrorContains(t, err, `unknown motion source "bluetooth"`)
}

func TestUnknownStoreDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "redis"

	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "open store")
}
