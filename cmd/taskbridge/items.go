package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskbridge/internal/tui"
	"taskbridge/store"
)

func newAddCmd() *cobra.Command {
	var interactive bool
	var description string
	var due string
	var duration int
	var listID string

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a new item and queue it for delivery",
		Long: `Create an item in the local store. The item is marked dirty and an
outbox entry is queued, so the next sync pass pushes it to the remote
provider.

Examples:
  taskbridge add "Dentist" --due "2026-09-03 14:30" --duration 45
  taskbridge add -i   # interactive prompt`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			var item *store.Item

			if interactive {
				var err error
				item, err = tui.RunAddItem()
				if err != nil {
					return err
				}
				if item == nil {
					fmt.Println("Cancelled")
					return nil
				}
			} else {
				if len(args) == 0 {
					return fmt.Errorf("title is required (or use --interactive)")
				}
				item = &store.Item{
					Title:       args[0],
					Description: description,
					DurationMin: duration,
				}
				if due != "" {
					t, err := time.ParseInLocation("2006-01-02 15:04", due, time.Local)
					if err != nil {
						return fmt.Errorf("invalid --due %q (want 2006-01-02 15:04)", due)
					}
					item.DueAt = &t
				}
			}

			if listID != "" {
				item.ListID = listID
			}

			if err := app.engine.CreateItem(item); err != nil {
				return fmt.Errorf("failed to create item: %w", err)
			}

			fmt.Printf("✓ Created item %s (%s), queued for sync\n", item.ID, item.Title)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for fields interactively")
	cmd.Flags().StringVar(&description, "desc", "", "item description")
	cmd.Flags().StringVar(&due, "due", "", "due time, local zone (2006-01-02 15:04)")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in minutes")
	cmd.Flags().StringVarP(&listID, "list", "l", "", "target list (default: configured default list)")

	return cmd
}

func newListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local items",
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			items, err := app.store.ListItems()
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			width := 80
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
				width = w
			}

			shown := 0
			for _, item := range items {
				if !all && item.Status == store.StatusCancelled {
					continue
				}
				printItemRow(&item, width)
				shown++
			}

			if shown == 0 {
				fmt.Println("No items")
			}
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include cancelled items")
	return cmd
}

func printItemRow(item *store.Item, width int) {
	marker := " "
	switch item.SyncState {
	case store.SyncStateDirty:
		marker = "*"
	case store.SyncStateConflict:
		marker = "!"
	}

	due := ""
	if item.DueAt != nil {
		due = item.DueAt.Local().Format("2006-01-02 15:04")
	}

	// id(8) + markers + due leave the rest of the row for the title
	titleWidth := width - 30
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := item.Title
	if len(title) > titleWidth {
		title = title[:titleWidth-1] + "…"
	}

	fmt.Printf("%s %-8s %-*s %s %s\n", marker, shortID(item.ID), titleWidth, title, due, statusBadge(item.Status))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func statusBadge(s store.ItemStatus) string {
	switch s {
	case store.StatusDone:
		return "[done]"
	case store.StatusCancelled:
		return "[cancelled]"
	default:
		return ""
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <item-id>",
		Short: "Cancel an item and queue the remote cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			id, err := resolveItemID(app, args[0])
			if err != nil {
				return err
			}

			if err := app.engine.CancelItem(id); err != nil {
				return fmt.Errorf("failed to cancel item: %w", err)
			}

			fmt.Printf("✓ Cancelled item %s, queued for sync\n", shortID(id))
			return nil
		}),
	}
}

// resolveItemID accepts a full item id or an unambiguous prefix.
func resolveItemID(app *App, arg string) (string, error) {
	if _, err := app.store.GetItem(arg); err == nil {
		return arg, nil
	}

	items, err := app.store.ListItems()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, item := range items {
		if strings.HasPrefix(item.ID, arg) {
			matches = append(matches, item.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no item matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("item id %q is ambiguous (%d matches)", arg, len(matches))
	}
}
