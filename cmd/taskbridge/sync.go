package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskbridge/internal/utils"
	"taskbridge/sync"
)

func newSyncCmd() *cobra.Command {
	var daemon bool
	var calendarID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass against the remote provider",
		Long: `Run one bidirectional sync pass: pull remote changes into the local
store, then drain the outbox of pending local changes.

With --daemon the process stays up and repeats passes on a cadence:
every active interval while a calendar has upcoming activity, every
idle interval otherwise. The next pass is scheduled after the previous
one completes.

Examples:
  taskbridge sync                   # one pull+push pass
  taskbridge sync --calendar work   # pull one calendar only, then push
  taskbridge sync --daemon          # run continuously until SIGTERM`,
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			if daemon {
				return runDaemon(app)
			}
			return runOnce(app, calendarID)
		}),
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "run continuously on the configured cadence")
	cmd.Flags().StringVarP(&calendarID, "calendar", "c", "", "pull only this calendar")

	return cmd
}

func runOnce(app *App, calendarID string) error {
	ctx := context.Background()
	start := time.Now()

	calendars := app.engine.Calendars()
	if calendarID != "" {
		found := false
		for _, cal := range calendars {
			if cal.ID == calendarID {
				calendars = []sync.Calendar{cal}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("calendar %q not configured", calendarID)
		}
	}

	var pullErrs int
	total := sync.PullStats{}
	for _, cal := range calendars {
		stats, err := app.engine.RunPull(ctx, cal.ID)
		if err != nil {
			pullErrs++
			fmt.Printf("✗ pull %s failed: %v\n", cal.ID, err)
			continue
		}
		total.Processed += stats.Processed
		total.Created += stats.Created
		total.Updated += stats.Updated
		total.Cancelled += stats.Cancelled
		total.Conflicts += stats.Conflicts
		if stats.TokenReset {
			fmt.Printf("  %s: sync token expired, ran full resync\n", cal.ID)
		}
	}

	drained, err := app.engine.RunPushBatch(ctx, 0)
	if err != nil {
		return fmt.Errorf("outbox drain failed: %w", err)
	}

	fmt.Println("\n=== Sync Complete ===")
	fmt.Printf("Pulled: %d events (%d created, %d updated, %d cancelled)\n",
		total.Processed, total.Created, total.Updated, total.Cancelled)
	fmt.Printf("Pushed: %d entries (%d succeeded, %d deferred)\n",
		drained.Processed, drained.Success, drained.Failed)
	if total.Conflicts > 0 {
		fmt.Printf("⚠ Conflicts detected: %d (run 'taskbridge conflicts' to review)\n", total.Conflicts)
	}
	fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if pullErrs > 0 {
		return fmt.Errorf("%d calendar(s) failed to pull", pullErrs)
	}
	return nil
}

func runDaemon(app *App) error {
	logger := utils.GetLogger()

	if app.config.DaemonLogFile != "" {
		if err := utils.UseDaemonLog(app.config.DaemonLogFile); err != nil {
			return fmt.Errorf("failed to open daemon log: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := sync.NewScheduler(app.engine)
	logger.Info("daemon starting, pid %d", os.Getpid())
	return scheduler.Run(ctx)
}
