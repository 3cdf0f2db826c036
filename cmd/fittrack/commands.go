package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/app"
	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/export"
	"example.com/fittrack/internal/fitimport"
	"example.com/fittrack/internal/motion"
)

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show step and calorie totals for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(_ context.Context, a *app.App) error {
				s := a.Service.Summary(p)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "period: %s\nactivities: %d\nsteps: %d\ncalories: %d\naverage steps: %d\n",
					s.Period, s.TotalActivities, s.TotalSteps, s.TotalCalories, s.AverageSteps)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "daily", "daily|weekly|monthly")
	return cmd
}

func newDashboardCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show today's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, a *app.App) error {
				d := a.Service.Dashboard()
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "steps: %d / %d (%.1f%%)\ndistance: %.1f km\ncalories: %d\nactive time: %s\nactivities today: %d\n",
					d.DailySteps, d.DailyGoal, d.GoalProgress, d.DistanceKm, d.DailyCalories, d.ActiveTime, d.TodayActivities)
				return nil
			})
		},
	}
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var out, format, date, query string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the activity history as CSV or parquet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "parquet" {
				return fmt.Errorf("--format must be csv or parquet")
			}
			return withApp(cmd, flags, func(_ context.Context, a *app.App) error {
				records := a.Service.History(domain.Filter{Date: date, Query: query})
				path := out
				if path == "" {
					path = export.FileName(time.Now())
					if format == "parquet" {
						path = export.ParquetFileName(time.Now())
					}
				}
				if err := writeExport(path, format, records); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d activities to %s\n", len(records), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (defaults to fitness_activities_<date>.<format>)")
	cmd.Flags().StringVar(&format, "format", "csv", "csv|parquet")
	cmd.Flags().StringVar(&date, "date", "", "only activities on this UTC day, YYYY-MM-DD")
	cmd.Flags().StringVar(&query, "q", "", "only activity types containing this text")
	return cmd
}

func writeExport(path, format string, records []domain.ActivityRecord) error {
	if format == "parquet" {
		data, err := export.MarshalParquet(records)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.fit>...",
		Short: "Import activities from FIT files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				for _, path := range args {
					records, err := fitimport.ImportFile(ctx, a.Service, path)
					for _, r := range records {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d kcal\n", path, r.Type, r.Duration, r.Calories)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newGoalCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "goal <steps>",
		Short: "Set the daily step goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("%s", domain.InvalidGoalMessage)
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				res, err := a.Service.SetDailyGoal(ctx, goal)
				if !res.Applied {
					return err
				}
				warn(cmd, err)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "daily goal: %d steps\n", a.Store.DailyGoal())
				return nil
			})
		},
	}
}

func newProfileCmd(flags *globalFlags) *cobra.Command {
	var form domain.ProfileForm
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the user profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				switch {
				case cmd.Flags().Changed("first-name") || cmd.Flags().Changed("last-name"):
					if !cmd.Flags().Changed("goal") {
						form.DailyGoal = strconv.Itoa(a.Store.DailyGoal())
					}
					res, err := a.Service.SubmitProfileForm(ctx, form)
					if !res.Result.Applied {
						return err
					}
					warn(cmd, err)
				case cmd.Flags().Changed("image"):
					res, err := a.Store.UpdateUserImage(ctx, strings.TrimSpace(form.Image))
					if !res.Applied {
						return err
					}
					warn(cmd, err)
				}

				profile, ok := a.Store.UserProfile()
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no profile")
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "name: %s\nheight: %s\nweight: %s\ndaily goal: %d\n",
					profile.FullName(), profile.Height, profile.Weight, a.Store.DailyGoal())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&form.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&form.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&form.Height, "height", "", "height")
	cmd.Flags().StringVar(&form.Weight, "weight", "", "weight")
	cmd.Flags().StringVar(&form.DailyGoal, "goal", "", "daily step goal")
	cmd.Flags().StringVar(&form.Image, "image", "", "profile image URI")
	return cmd
}

func newSimulateCmd(flags *globalFlags) *cobra.Command {
	var activityType string
	var duration, interval time.Duration
	var cadence int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record a session driven by a synthetic walking signal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration < time.Second {
				return fmt.Errorf("--duration must be at least 1s")
			}
			if interval <= 0 || interval > time.Second {
				return fmt.Errorf("--interval must be in (0, 1s]")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := a.Session.SetActivityType(activityType); err != nil {
					return err
				}
				if err := a.Session.Start(); err != nil {
					return err
				}

				simulate(a, motion.NewNoiseSource(cadence, 0), int(duration/time.Second), interval, time.Now())

				res, err := a.Session.Finish(ctx)
				if !res.Activity.Applied {
					return err
				}
				warn(cmd, err)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded %s %s: %d steps, %d kcal (today: %d steps)\n",
					res.Record.Type, res.Record.Duration, res.Record.Steps, res.Record.Calories, res.TotalSteps)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&activityType, "type", "walking", "activity type")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Minute, "simulated active time")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "simulated sample interval")
	cmd.Flags().IntVar(&cadence, "cadence", 5, "samples between heel strikes")
	return cmd
}

// simulate pushes one second of samples per timer tick, with synthetic
// timestamps, so a long session completes instantly.
func simulate(a *app.App, source *motion.NoiseSource, seconds int, interval time.Duration, start time.Time) {
	perSecond := int(time.Second / interval)
	at := start
	for s := 0; s < seconds; s++ {
		for i := 0; i < perSecond; i++ {
			x, y, z, _ := source.Read()
			at = at.Add(interval)
			a.Hub.Push(motion.Sample{X: x, Y: y, Z: z, T: at})
		}
		a.Session.Timer().Tick()
	}
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var subject string
	var scopes []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			token, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, ttl, scopes...)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeTrackerWrite}, "scopes to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
