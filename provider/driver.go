package provider

import (
	"log/slog"
	"net/http"
	"time"
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DriverOptions holds collaborators shared by driver constructors.
type DriverOptions struct {
	HTTPClient HTTPDoer
	Logger     *slog.Logger
	// Timeout applies when the driver configuration does not set one.
	Timeout time.Duration
	// Debug enables request and response logging when the driver
	// configuration does not enable it.
	Debug bool
}

// DriverOption configures a driver constructor.
type DriverOption func(*DriverOptions)

// NewDriverOptions applies opts over the defaults.
func NewDriverOptions(opts ...DriverOption) *DriverOptions {
	o := &DriverOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHTTPClient sets the HTTP client used by HTTP drivers.
func WithHTTPClient(c HTTPDoer) DriverOption {
	return func(o *DriverOptions) {
		if c != nil {
			o.HTTPClient = c
		}
	}
}

// WithDriverLogger sets the driver logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(o *DriverOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithTimeout sets the fallback per-call timeout.
func WithTimeout(d time.Duration) DriverOption {
	return func(o *DriverOptions) {
		o.Timeout = d
	}
}

// WithDebug sets the fallback debug flag.
func WithDebug(enabled bool) DriverOption {
	return func(o *DriverOptions) {
		o.Debug = enabled
	}
}
