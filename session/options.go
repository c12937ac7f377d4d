package session

import (
	"log/slog"
	"time"
)

// Option configures a Session.
type Option func(*config)

type config struct {
	timeout       time.Duration
	partialOutput bool
	maxOutput     int
	logger        *slog.Logger
}

func defaultConfig() config {
	return config{
		timeout: 30 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// WithTimeout sets the maximum time of a single mode call. Zero disables
// the limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithPartialOutput keeps what a program printed before a runtime error in
// Result.Output. By default a failed call has empty output.
func WithPartialOutput(enabled bool) Option {
	return func(c *config) {
		c.partialOutput = enabled
	}
}

// WithMaxOutput truncates Result.Output to n bytes. Zero means no limit.
func WithMaxOutput(n int) Option {
	return func(c *config) {
		c.maxOutput = n
	}
}

// WithLogger sets the logger for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
