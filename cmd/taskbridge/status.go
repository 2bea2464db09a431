package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskbridge/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		Long: `Display current synchronization state:
- Items by sync state
- Open conflicts and pending outbox entries
- Per-calendar cursor status and last sync outcome`,
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			stats, err := app.engine.Stats()
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			fmt.Println("\n=== Sync Status ===")
			fmt.Printf("Items: %d synced, %d dirty, %d in conflict\n",
				stats.ItemsByState[store.SyncStateSynced],
				stats.ItemsByState[store.SyncStateDirty],
				stats.ItemsByState[store.SyncStateConflict])
			fmt.Printf("Open conflicts: %d\n", stats.OpenConflicts)
			fmt.Printf("Pending outbox entries: %d\n", stats.PendingOutbox)

			if len(stats.Cursors) > 0 {
				fmt.Println("\nCalendars:")
				for _, c := range stats.Cursors {
					fmt.Printf("  %s\n", c.CalendarID)
					if c.Token != "" {
						fmt.Println("    Mode: incremental")
					} else {
						fmt.Println("    Mode: full window (no sync token)")
					}
					printLastSync(c)
				}
			}

			fmt.Println()
			return nil
		}),
	}
}

func printLastSync(c store.SyncCursor) {
	if c.LastSyncAt == nil {
		fmt.Println("    Last sync: never")
		return
	}
	outcome := "ok"
	if !c.LastSyncOK {
		outcome = "failed"
		if c.LastSyncError != "" {
			outcome = "failed: " + c.LastSyncError
		}
	}
	fmt.Printf("    Last sync: %s ago (%s)\n", formatDuration(time.Since(*c.LastSyncAt)), outcome)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
