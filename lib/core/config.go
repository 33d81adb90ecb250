// Package core provides file configuration for the connpool monitoring
// command: pool sizing, the database the pool connects to and the HTTP
// monitor endpoint.
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/go-i2p/connpool/lib/pool"
)

// Default configuration values
const (
	DefaultDriver        = "sqlite3"
	DefaultSQLitePath    = "connpool.db"
	DefaultMySQLAddress  = "127.0.0.1:3306"
	DefaultPingTimeout   = 5 * time.Second
	DefaultMonitorListen = "127.0.0.1:9190"
	DefaultProbeTimeout  = 10 * time.Second

	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// Environment variables that override file settings.
const (
	EnvDatabaseUser   = "CONNPOOL_DB_USER"
	EnvDatabaseSecret = "CONNPOOL_DB_SECRET"
)

// Duration is a time.Duration written to TOML as a string such as "30s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds all configuration for poolmon.
type Config struct {
	Pool     PoolConfig     `toml:"pool"`
	Database DatabaseConfig `toml:"database"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

// PoolConfig mirrors pool.Config.
type PoolConfig struct {
	MinimumSize           int      `toml:"minimum_size"`
	MaximumSize           int      `toml:"maximum_size"`
	CleanupInterval       Duration `toml:"cleanup_interval"`
	ResourceTimeout       Duration `toml:"resource_timeout"`
	MaximumCheckoutWait   Duration `toml:"maximum_checkout_wait"`
	NewResourceThreshold  Duration `toml:"new_resource_threshold"`
	StatisticsInterval    Duration `toml:"statistics_interval"`
	FineGrainedStatistics bool     `toml:"fine_grained_statistics"`
	SnapshotCapacity      int      `toml:"snapshot_capacity"`
}

// DatabaseConfig selects the driver and target database.
type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite3"
	Driver string `toml:"driver"`
	// Address is the MySQL host:port
	Address string `toml:"address,omitempty"`
	// Name is the MySQL database name
	Name string `toml:"name,omitempty"`
	// Path is the SQLite database file
	Path string `toml:"path,omitempty"`
	// User and Secret form the pool credential. Prefer the environment
	// for the secret.
	User   string `toml:"user,omitempty"`
	Secret string `toml:"secret,omitempty"`
	// PingTimeout bounds the validity check of a connection
	PingTimeout Duration `toml:"ping_timeout"`
	// BreakerFailures is the number of consecutive connect failures that
	// makes creations fail fast. Zero disables the breaker.
	BreakerFailures int `toml:"breaker_failures"`
	// BreakerTimeout is how long creations fail fast before a retry
	BreakerTimeout Duration `toml:"breaker_timeout"`
}

// MonitorConfig contains HTTP monitor settings.
type MonitorConfig struct {
	// Listen is the address to bind the monitor to
	Listen string `toml:"listen"`
	// ProbeTimeout bounds a /probe round trip
	ProbeTimeout Duration `toml:"probe_timeout"`
	// TrustProxy keys POST route budgets on X-Forwarded-For
	TrustProxy bool `toml:"trust_proxy"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	pc := pool.DefaultConfig()
	return &Config{
		Pool: PoolConfig{
			MinimumSize:          pc.MinimumSize,
			MaximumSize:          pc.MaximumSize,
			CleanupInterval:      Duration(pc.CleanupInterval),
			ResourceTimeout:      Duration(pc.ResourceTimeout),
			MaximumCheckoutWait:  Duration(pc.MaximumCheckoutWait),
			NewResourceThreshold: Duration(pc.NewResourceThreshold),
			StatisticsInterval:   Duration(pc.StatisticsInterval),
			SnapshotCapacity:     pc.SnapshotCapacity,
		},
		Database: DatabaseConfig{
			Driver:          DefaultDriver,
			Path:            DefaultSQLitePath,
			PingTimeout:     Duration(DefaultPingTimeout),
			BreakerFailures: DefaultBreakerFailures,
			BreakerTimeout:  Duration(DefaultBreakerTimeout),
		},
		Monitor: MonitorConfig{
			Listen:       DefaultMonitorListen,
			ProbeTimeout: Duration(DefaultProbeTimeout),
		},
	}
}

// LoadConfig reads configuration from a TOML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides the database credential from the environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvDatabaseUser); ok {
		c.Database.User = v
	}
	if v, ok := os.LookupEnv(EnvDatabaseSecret); ok {
		c.Database.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite3")
		}
	case "mysql":
		if c.Database.Address == "" {
			return errors.New("database.address is required for mysql")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required for mysql")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.PingTimeout <= 0 {
		return errors.New("database.ping_timeout must be positive")
	}
	if c.Database.BreakerFailures < 0 {
		return errors.New("database.breaker_failures must not be negative")
	}
	if c.Database.BreakerFailures > 0 && c.Database.BreakerTimeout <= 0 {
		return errors.New("database.breaker_timeout must be positive when the breaker is enabled")
	}
	if c.Monitor.Listen == "" {
		return errors.New("monitor.listen is required")
	}
	if c.Monitor.ProbeTimeout <= 0 {
		return errors.New("monitor.probe_timeout must be positive")
	}
	if err := c.PoolConfig().Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	return nil
}

// PoolConfig converts the [pool] section to a pool.Config.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		MinimumSize:                  c.Pool.MinimumSize,
		MaximumSize:                  c.Pool.MaximumSize,
		CleanupInterval:              time.Duration(c.Pool.CleanupInterval),
		ResourceTimeout:              time.Duration(c.Pool.ResourceTimeout),
		MaximumCheckoutWait:          time.Duration(c.Pool.MaximumCheckoutWait),
		NewResourceThreshold:         time.Duration(c.Pool.NewResourceThreshold),
		StatisticsInterval:           time.Duration(c.Pool.StatisticsInterval),
		CollectFineGrainedStatistics: c.Pool.FineGrainedStatistics,
		SnapshotCapacity:             c.Pool.SnapshotCapacity,
		EventBuffer:                  pool.DefaultEventBuffer,
	}
}

// Credential returns the pool credential from the [database] section.
func (c *Config) Credential() pool.Credential {
	return pool.Credential{User: c.Database.User, Secret: c.Database.Secret}
}
