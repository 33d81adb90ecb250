package pool

import (
	"time"

	"github.com/samber/oops"
)

// Default configuration values
const (
	DefaultMinimumSize          = 4
	DefaultMaximumSize          = 8
	DefaultCleanupInterval      = 20 * time.Second
	DefaultResourceTimeout      = 60 * time.Second
	DefaultMaximumCheckoutWait  = 30 * time.Second
	DefaultNewResourceThreshold = 0
	DefaultStatisticsInterval   = 5 * time.Second
	DefaultSnapshotCapacity     = 1000
	DefaultEventBuffer          = 64
)

// Config configures a Pool. All fields except the two buffer sizes can be
// changed at runtime through the Pool setters.
type Config struct {
	// MinimumSize is the number of resources created up front and the floor
	// below which cleanup never shrinks the pool.
	MinimumSize int
	// MaximumSize caps idle plus checked-out resources.
	MaximumSize int
	// CleanupInterval is the period of the idle eviction sweep.
	CleanupInterval time.Duration
	// ResourceTimeout is how long a resource may sit idle before the sweep
	// may destroy it.
	ResourceTimeout time.Duration
	// MaximumCheckoutWait bounds how long Checkout blocks when the pool is
	// saturated. Zero fails immediately.
	MaximumCheckoutWait time.Duration
	// NewResourceThreshold makes Checkout wait this long for a returned
	// resource before creating a new one below MaximumSize.
	// Zero creates immediately.
	NewResourceThreshold time.Duration
	// StatisticsInterval is the sampling period of the rate statistics.
	StatisticsInterval time.Duration
	// CollectFineGrainedStatistics enables occupancy snapshots.
	CollectFineGrainedStatistics bool
	// SnapshotCapacity bounds the number of retained snapshots.
	SnapshotCapacity int
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinimumSize:          DefaultMinimumSize,
		MaximumSize:          DefaultMaximumSize,
		CleanupInterval:      DefaultCleanupInterval,
		ResourceTimeout:      DefaultResourceTimeout,
		MaximumCheckoutWait:  DefaultMaximumCheckoutWait,
		NewResourceThreshold: DefaultNewResourceThreshold,
		StatisticsInterval:   DefaultStatisticsInterval,
		SnapshotCapacity:     DefaultSnapshotCapacity,
		EventBuffer:          DefaultEventBuffer,
	}
}

// withDefaults fills zero intervals and buffer sizes. Sizes are left alone
// because zero is a legal minimum and maximum.
func (c Config) withDefaults() Config {
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.ResourceTimeout == 0 {
		c.ResourceTimeout = DefaultResourceTimeout
	}
	if c.StatisticsInterval == 0 {
		c.StatisticsInterval = DefaultStatisticsInterval
	}
	if c.SnapshotCapacity == 0 {
		c.SnapshotCapacity = DefaultSnapshotCapacity
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	return c
}

// Validate checks the cross-field invariants of c. The returned error
// matches ErrInvalidConfiguration.
func (c Config) Validate() error {
	switch {
	case c.MinimumSize < 0:
		return invalid("minimum_size", c.MinimumSize, "minimum size must not be negative")
	case c.MaximumSize < 0:
		return invalid("maximum_size", c.MaximumSize, "maximum size must not be negative")
	case c.MinimumSize > c.MaximumSize:
		return invalid("minimum_size", c.MinimumSize, "minimum size %d exceeds maximum size %d", c.MinimumSize, c.MaximumSize)
	case c.CleanupInterval <= 0:
		return invalid("cleanup_interval", c.CleanupInterval, "cleanup interval must be positive")
	case c.ResourceTimeout <= 0:
		return invalid("resource_timeout", c.ResourceTimeout, "resource timeout must be positive")
	case c.MaximumCheckoutWait < 0:
		return invalid("maximum_checkout_wait", c.MaximumCheckoutWait, "maximum checkout wait must not be negative")
	case c.NewResourceThreshold < 0:
		return invalid("new_resource_threshold", c.NewResourceThreshold, "new resource threshold must not be negative")
	case c.StatisticsInterval <= 0:
		return invalid("statistics_interval", c.StatisticsInterval, "statistics interval must be positive")
	case c.SnapshotCapacity < 1:
		return invalid("snapshot_capacity", c.SnapshotCapacity, "snapshot capacity must be at least 1")
	case c.EventBuffer < 1:
		return invalid("event_buffer", c.EventBuffer, "event buffer must be at least 1")
	}
	return nil
}

func invalid(field string, value any, format string, args ...any) error {
	return oops.
		In("pool").
		With("field", field, "value", value).
		Wrapf(ErrInvalidConfiguration, format, args...)
}
