package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/app"
	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/notify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	dbPath     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "fittrack",
		Short:         "Fitness tracker command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config overlay")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlite database path (forces the sqlite store)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log component output to stderr")

	root.AddCommand(newSummaryCmd(&flags))
	root.AddCommand(newDashboardCmd(&flags))
	root.AddCommand(newExportCmd(&flags))
	root.AddCommand(newImportCmd(&flags))
	root.AddCommand(newGoalCmd(&flags))
	root.AddCommand(newProfileCmd(&flags))
	root.AddCommand(newSimulateCmd(&flags))
	root.AddCommand(newTokenCmd(&flags))
	return root
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.LoadFile(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if flags.dbPath != "" {
		cfg.StoreDriver = "sqlite"
		cfg.SQLitePath = flags.dbPath
	}
	// commands drive the session themselves
	cfg.MotionSource = config.MotionPush
	cfg.TimerTick = 0
	return cfg, nil
}

// withApp opens the tracker for one command and closes it afterwards, so
// every write is flushed before the process exits.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(context.Context, *app.App) error) (err error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if !flags.verbose {
		log.SetOutput(io.Discard)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tracker, err := app.New(ctx, cfg, app.WithNotifier(notify.NoopNotifier{}))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tracker.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, tracker)
}

// warn reports a write that was applied but not persisted.
func warn(cmd *cobra.Command, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}
