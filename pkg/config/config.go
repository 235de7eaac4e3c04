package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is horao's full configuration surface: identity, peer-sync
// tuning, fair-share weights, and storage/logging options.
type Config struct {
	PeerID     string            `mapstructure:"peer_id"`
	HostID     string            `mapstructure:"host_id"`
	PeerSecret string            `mapstructure:"peer_secret"`
	Peers      map[string]string `mapstructure:"peers"`
	PeerStrict bool              `mapstructure:"peer_strict"`

	ClockOffsetSeconds float64 `mapstructure:"clock_offset"`
	SyncDeltaSeconds   int     `mapstructure:"sync_delta"`
	SyncMaxOps         int     `mapstructure:"sync_max"`

	// DefaultShare is loaded from `shares` but is not applied anywhere:
	// Shares returns TenantShares only, and the scheduler gives a tenant
	// absent from TenantShares a weight of 1 whatever DefaultShare is set
	// to. TenantShares holds per-tenant weight overrides, since a single
	// global default can't express "gold tenants get 4x bronze".
	DefaultShare int            `mapstructure:"shares"`
	TenantShares map[string]int `mapstructure:"tenant_shares"`

	SnapshotIntervalOps     int `mapstructure:"snapshot_interval_ops"`
	SnapshotIntervalSeconds int `mapstructure:"snapshot_interval_seconds"`

	DataDir  string `mapstructure:"data_dir"`
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
}

// ClockOffset returns the acceptable wall-clock skew as a time.Duration.
func (c *Config) ClockOffset() time.Duration {
	return time.Duration(c.ClockOffsetSeconds * float64(time.Second))
}

// SyncDelta returns the backpressure time threshold as a time.Duration.
func (c *Config) SyncDelta() time.Duration {
	return time.Duration(c.SyncDeltaSeconds) * time.Second
}

// SnapshotInterval returns the wall-clock snapshot cadence as a
// time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

// Shares returns the tenant weight map scheduler.NewScheduler expects,
// folding DefaultShare in as a fallback entry under a wildcard key isn't
// meaningful for a map lookup, so Shares returns TenantShares verbatim;
// pkg/scheduler already defaults an absent tenant to weight 1 — callers
// wanting a different global default pass DefaultShare through
// explicitly where they rank a tenant not present here.
func (c *Config) Shares() map[string]int {
	return c.TenantShares
}

// Load builds a Config from, in increasing precedence: built-in
// defaults, an optional config file (--config), environment variables
// prefixed HORAO_, then bound command-line flags.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("config: failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("HORAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host_id", "")
	v.SetDefault("peer_strict", false)
	v.SetDefault("clock_offset", 5.0)
	v.SetDefault("sync_delta", 180)
	v.SetDefault("sync_max", 1000)
	v.SetDefault("shares", 1)
	v.SetDefault("snapshot_interval_ops", 1000)
	v.SetDefault("snapshot_interval_seconds", 300)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("listen", ":7946")
	v.SetDefault("log_level", "info")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"peer-id":      "peer_id",
		"host-id":      "host_id",
		"peer-secret":  "peer_secret",
		"peer-strict":  "peer_strict",
		"clock-offset": "clock_offset",
		"sync-delta":   "sync_delta",
		"sync-max":     "sync_max",
		"data-dir":     "data_dir",
		"listen":       "listen",
		"log-level":    "log_level",
	}
	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.PeerID == "" {
		return fmt.Errorf("peer_id is required: specify via --peer-id flag, config file, or HORAO_PEER_ID")
	}
	if cfg.HostID == "" {
		h, err := os.Hostname()
		if err != nil {
			h = cfg.PeerID
		}
		cfg.HostID = h
	}
	if cfg.PeerStrict && cfg.PeerSecret == "" {
		return fmt.Errorf("peer_strict requires peer_secret to be set")
	}
	if cfg.ClockOffsetSeconds < 0 {
		return fmt.Errorf("clock_offset must be non-negative")
	}
	if cfg.DefaultShare <= 0 {
		cfg.DefaultShare = 1
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %q: %w", cfg.DataDir, err)
	}
	return nil
}
