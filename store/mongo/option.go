package mongo

import (
	"log/slog"
	"time"
)

// Defaults applied by New.
const (
	DefaultDatabase   = "notify"
	DefaultCollection = "notification_templates"
	DefaultTimeout    = 10 * time.Second
)

// Option configures a MongoDB template store.
type Option func(*options)

type options struct {
	database   string
	collection string
	timeout    time.Duration
	logger     *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:   DefaultDatabase,
		collection: DefaultCollection,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDatabase selects the database holding the template collection.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollection stores templates in name instead of DefaultCollection.
// Connect ensures the uq_template_key unique index on the composite key
// fields; the upsert in GetOrCreate relies on it when two callers race.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithTimeout bounds Connect and each store call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
