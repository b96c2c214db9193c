package cached

import (
	"log/slog"
	"time"
)

type options struct {
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger
}

// Option configures the caching resolver.
type Option func(*options)

// WithTTL sets how long a resolved URL is reused. Default is one hour.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMaxEntries caps the number of cached URLs. Default is 1024.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
