package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "taskbridge"
	configFileName = "config.yaml"
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	DBPath        string `yaml:"db_path,omitempty"`
	DefaultListID string `yaml:"default_list_id" validate:"required"`

	Provider  ProviderConfig   `yaml:"provider" validate:"required"`
	Calendars []CalendarConfig `yaml:"calendars" validate:"min=1,dive"`

	Sync     SyncConfig     `yaml:"sync"`
	Snapshot SnapshotConfig `yaml:"snapshot"`

	DaemonLogFile string `yaml:"daemon_log_file,omitempty"`
}

// ProviderConfig selects and configures the remote provider client.
type ProviderConfig struct {
	Scheme string `yaml:"scheme" validate:"required"`
	// Token is a literal API token. Prefer the keyring or the
	// TASKBRIDGE_<SCHEME>_TOKEN environment variable.
	Token    string            `yaml:"token,omitempty"`
	Settings map[string]string `yaml:"settings,omitempty"`
}

// CalendarConfig is one remote calendar/list to reconcile.
type CalendarConfig struct {
	ID     string `yaml:"id" validate:"required"`
	Source string `yaml:"source" validate:"oneof=calendar_pull task_pull sheet_pull"`
}

// SyncConfig tunes the scheduler and outbox.
type SyncConfig struct {
	ActiveIntervalSec int `yaml:"active_interval_sec" validate:"gte=0"`
	IdleIntervalSec   int `yaml:"idle_interval_sec" validate:"gte=0"`
	BackoffBaseSec    int `yaml:"backoff_base_sec" validate:"gte=0"`
	BatchSize         int `yaml:"batch_size" validate:"gte=0"`
	WindowBackDays    int `yaml:"window_back_days" validate:"gte=0"`
	WindowForwardDays int `yaml:"window_forward_days" validate:"gte=0"`
}

// SnapshotConfig controls the periodic item export.
type SnapshotConfig struct {
	Path     string `yaml:"path,omitempty"`
	EveryMin int    `yaml:"every_min" validate:"gte=0"`
}

// Defaults applied when the config file leaves fields unset.
const (
	defaultActiveIntervalSec = 60
	defaultIdleIntervalSec   = 900
	defaultBackoffBaseSec    = 30
	defaultBatchSize         = 50
	defaultWindowBackDays    = 90
	defaultWindowForwardDays = 365
	defaultSnapshotEveryMin  = 60
)

// Load reads the config file, applies defaults and validates. An empty path
// uses the XDG-compliant default location. A .env file next to the working
// directory is loaded first so token environment variables can live there.
func Load(path string) (*Config, error) {
	// Best-effort: a missing .env is fine.
	_ = godotenv.Load()

	if path == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func defaultConfigPath() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, configDirName, configFileName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

func (c *Config) applyDefaults() {
	if c.Sync.ActiveIntervalSec == 0 {
		c.Sync.ActiveIntervalSec = defaultActiveIntervalSec
	}
	if c.Sync.IdleIntervalSec == 0 {
		c.Sync.IdleIntervalSec = defaultIdleIntervalSec
	}
	if c.Sync.BackoffBaseSec == 0 {
		c.Sync.BackoffBaseSec = defaultBackoffBaseSec
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = defaultBatchSize
	}
	if c.Sync.WindowBackDays == 0 {
		c.Sync.WindowBackDays = defaultWindowBackDays
	}
	if c.Sync.WindowForwardDays == 0 {
		c.Sync.WindowForwardDays = defaultWindowForwardDays
	}
	if c.Snapshot.EveryMin == 0 {
		c.Snapshot.EveryMin = defaultSnapshotEveryMin
	}
	for i := range c.Calendars {
		if c.Calendars[i].Source == "" {
			c.Calendars[i].Source = "calendar_pull"
		}
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// Interval accessors, converting config integers to durations.

func (c *SyncConfig) ActiveInterval() time.Duration {
	return time.Duration(c.ActiveIntervalSec) * time.Second
}

func (c *SyncConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSec) * time.Second
}

func (c *SyncConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSec) * time.Second
}

func (c *SyncConfig) WindowBack() time.Duration {
	return time.Duration(c.WindowBackDays) * 24 * time.Hour
}

func (c *SyncConfig) WindowForward() time.Duration {
	return time.Duration(c.WindowForwardDays) * 24 * time.Hour
}

func (c *SnapshotConfig) Every() time.Duration {
	return time.Duration(c.EveryMin) * time.Minute
}
