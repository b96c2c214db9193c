package postgres

import (
	"log/slog"
	"time"
)

const (
	// DefaultTable holds one row per template composite key.
	DefaultTable = "notification_templates"

	// DefaultTimeout bounds each query, including the get-or-create round trip.
	DefaultTimeout = 10 * time.Second
)

// Option configures a PostgreSQL template store.
type Option func(*options)

type options struct {
	table   string
	timeout time.Duration
	logger  *slog.Logger
	migrate bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		table:   DefaultTable,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		migrate: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTable stores templates in name instead of DefaultTable.
//
// Connect creates the table together with a unique index named
// uq_<name>_key over (language, type, subject_type, subject_id). GetOrCreate
// depends on that index to settle concurrent creation of the same key, so a
// table managed elsewhere (see WithoutSchema) must carry an equivalent one.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithTimeout bounds each store call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithoutSchema skips table and index creation on Connect, for databases
// whose schema is managed by migrations.
func WithoutSchema() Option {
	return func(o *options) {
		o.migrate = false
	}
}
