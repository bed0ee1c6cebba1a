package zvfs

import (
	"log/slog"
	"time"
)

// Option configures a Container or a path-level operation.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	clock    func() time.Time
	capacity int
}

func newConfig(opts []Option) config {
	cfg := config{
		clock:    time.Now,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger for container operations.
// A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock sets the time source used for entry creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.clock = now
		}
	}
}

// WithCapacity sets the number of entry slots written by Create and Format.
// It has no effect on existing containers, whose capacity is read from the
// superblock.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}
