package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/internal/config"
	"taskbridge/internal/credentials"
	"taskbridge/internal/utils"
	"taskbridge/provider"
	"taskbridge/store"
	"taskbridge/sync"
)

// App holds the wired components shared by the commands that need an
// engine. Built lazily so commands like "credentials set" work without a
// valid config.
type App struct {
	config *config.Config
	store  *store.Store
	engine *sync.Engine
}

var (
	flagConfig  string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskbridge",
		Short: "Bidirectional task and calendar sync",
		Long: `taskbridge keeps a local item store and a remote calendar provider
in agreement: remote changes are pulled in incrementally, local edits
are queued in an outbox and pushed out, and edits to both sides of the
same field surface as conflicts for explicit resolution.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				utils.SetVerboseMode(true)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConflictsCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newCredentialsCmd())

	return rootCmd
}

// newApp loads config and wires store, provider and engine.
func newApp() (*App, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]string, len(cfg.Provider.Settings)+1)
	for k, v := range cfg.Provider.Settings {
		settings[k] = v
	}
	if _, ok := settings["token"]; !ok {
		// Token resolution failure is not fatal here; some providers
		// authenticate through their settings alone.
		if token, err := credentials.Resolve(cfg.Provider.Scheme, cfg.Provider.Token); err == nil {
			settings["token"] = token.Value
			utils.GetLogger().Debug("provider token resolved from %s", token.Source)
		}
	}

	client, err := provider.New(cfg.Provider.Scheme, settings)
	if err != nil {
		st.Close()
		return nil, err
	}

	calendars := make([]sync.Calendar, 0, len(cfg.Calendars))
	for _, cal := range cfg.Calendars {
		calendars = append(calendars, sync.Calendar{
			ID:     cal.ID,
			Source: store.SyncSource(cal.Source),
		})
	}

	engine := sync.NewEngine(st, client, sync.Options{
		Calendars:      calendars,
		DefaultListID:  cfg.DefaultListID,
		ActiveInterval: cfg.Sync.ActiveInterval(),
		IdleInterval:   cfg.Sync.IdleInterval(),
		BackoffBase:    cfg.Sync.BackoffBase(),
		BatchSize:      cfg.Sync.BatchSize,
		WindowBack:     cfg.Sync.WindowBack(),
		WindowForward:  cfg.Sync.WindowForward(),
		SnapshotPath:   cfg.Snapshot.Path,
		SnapshotEvery:  cfg.Snapshot.Every(),
	})

	return &App{config: cfg, store: st, engine: engine}, nil
}

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			utils.GetLogger().Warn("failed to close store: %v", err)
		}
	}
}

// withApp wires an App for a command run and tears it down afterwards.
func withApp(run func(app *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer app.Close()
		return run(app, cmd, args)
	}
}
