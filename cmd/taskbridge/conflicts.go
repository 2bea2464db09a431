package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taskbridge/internal/tui"
	"taskbridge/store"
)

func newConflictsCmd() *cobra.Command {
	var interactive bool
	var limit int

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List and resolve sync conflicts",
		Long: `Show fields that were edited both locally and remotely since the last
sync. Each conflict is resolved explicitly: keep the local value or
accept the remote one. Nothing is overwritten until you choose.

Examples:
  taskbridge conflicts                          # list open conflicts
  taskbridge conflicts -i                       # resolve interactively
  taskbridge conflicts resolve 3 keep_local     # keep the local value
  taskbridge conflicts resolve 3 accept_remote  # take the remote value`,
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			if interactive {
				resolved, err := tui.RunConflictBrowser(app.engine)
				if err != nil {
					return err
				}
				fmt.Printf("Resolved %d conflict(s)\n", resolved)
				return nil
			}

			conflicts, err := app.engine.ListOpenConflicts(limit)
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}

			if len(conflicts) == 0 {
				fmt.Println("No open conflicts")
				return nil
			}

			fmt.Printf("\nOpen Conflicts (%d):\n\n", len(conflicts))
			for _, c := range conflicts {
				printConflict(c)
			}
			fmt.Println("Resolve with: taskbridge conflicts resolve <id> <keep_local|accept_remote>")
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "resolve conflicts in a terminal UI")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most N conflicts (0 = all)")

	cmd.AddCommand(newConflictsResolveCmd())
	return cmd
}

func printConflict(c store.Conflict) {
	fmt.Printf("  #%d  item %s  field %q  (from %s)\n", c.ID, c.ItemID, c.Field, c.Source)
	fmt.Printf("    local:    %s\n", orEmpty(c.LocalValue))
	fmt.Printf("    remote:   %s\n", orEmpty(c.RemoteValue))
	fmt.Printf("    detected: %s\n\n", c.DetectedAt.Format("2006-01-02 15:04:05"))
}

func orEmpty(v string) string {
	if v == "" {
		return "(empty)"
	}
	return v
}

func newConflictsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> <keep_local|accept_remote>",
		Short: "Resolve one conflict",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid conflict id %q", args[0])
			}

			choice := store.ConflictChoice(args[1])
			if !store.ValidChoice(choice) {
				return fmt.Errorf("invalid choice %q (want keep_local or accept_remote)", args[1])
			}

			c, err := app.engine.ResolveConflict(id, choice)
			if err != nil {
				return err
			}

			fmt.Printf("✓ Conflict #%d on item %s field %q resolved: %s\n", c.ID, c.ItemID, c.Field, choice)
			if choice == store.ChoiceKeepLocal {
				fmt.Println("  Local value queued for push to the remote provider")
			}
			return nil
		}),
	}
}
