// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"github.com/rs/zerolog"

	"github.com/kianostad/lfepoch/internal/monitoring/metrics"
)

const (
	// DefaultBagCapacity is the number of deferred functions a participant
	// buffers before migrating them to the global queue.
	DefaultBagCapacity = 64

	// DefaultCollectSteps bounds the sealed bags run per collection.
	DefaultCollectSteps = 8

	// DefaultPinningsBetweenCollect is how many pins a participant performs
	// between two opportunistic collections.
	DefaultPinningsBetweenCollect = 128
)

// Config holds collector settings.
type Config struct {
	BagCapacity            int
	CollectSteps           int
	PinningsBetweenCollect uint64

	// ConfinementChecks makes every participant verify that counters are only
	// touched from the goroutine that created it. It costs a goroutine id read per call.
	ConfinementChecks bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default collector settings.
func DefaultConfig() Config {
	return Config{
		BagCapacity:            DefaultBagCapacity,
		CollectSteps:           DefaultCollectSteps,
		PinningsBetweenCollect: DefaultPinningsBetweenCollect,
		Logger:                 zerolog.Nop(),
	}
}

func (c *Config) validate() {
	if c.BagCapacity <= 0 {
		violation("bag capacity must be positive, got %d", c.BagCapacity)
	}
	if c.CollectSteps <= 0 {
		violation("collect steps must be positive, got %d", c.CollectSteps)
	}
	if c.PinningsBetweenCollect == 0 {
		violation("pinnings between collect must be positive")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewMetrics()
	}
}

// Option configures a Collector.
type Option func(*Config)

// WithBagCapacity sets the per-participant garbage buffer size.
func WithBagCapacity(n int) Option {
	return func(c *Config) { c.BagCapacity = n }
}

// WithCollectSteps sets how many expired bags a single collection may run.
func WithCollectSteps(n int) Option {
	return func(c *Config) { c.CollectSteps = n }
}

// WithPinningsBetweenCollect sets how often pinning triggers a collection.
func WithPinningsBetweenCollect(n uint64) Option {
	return func(c *Config) { c.PinningsBetweenCollect = n }
}

// WithConfinementChecks enables goroutine ownership assertions.
func WithConfinementChecks(enabled bool) Option {
	return func(c *Config) { c.ConfinementChecks = enabled }
}

// WithLogger sets the collector logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics makes the collector report into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}
