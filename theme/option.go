package theme

import (
	"log/slog"
	"maps"
	"time"

	"github.com/rbaliyan/notify/logo"
)

// DefaultDateLayout formats the now parameter for languages without a
// specific layout.
const DefaultDateLayout = "2006-01-02"

// DefaultDateLayouts returns the built-in date layouts per language.
func DefaultDateLayouts() map[string]string {
	return map[string]string{
		"it": "02/01/2006",
		"fr": "02/01/2006",
		"es": "02/01/2006",
		"pt": "02/01/2006",
		"de": "02.01.2006",
		"en": "01/02/2006",
	}
}

type options struct {
	moduleKey     string
	logos         logo.URLResolver
	fromAddress   string
	fromName      string
	layouts       map[string]string
	defaultLayout string
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		moduleKey:     DefaultModuleKey,
		layouts:       DefaultDateLayouts(),
		defaultLayout: DefaultDateLayout,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithModuleKey sets the prefix of catalog keys. Default is "notifications".
func WithModuleKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.moduleKey = key
		}
	}
}

// WithLogoResolver resolves logo paths of the empty theme to URLs.
func WithLogoResolver(r logo.URLResolver) Option {
	return func(o *options) {
		o.logos = r
	}
}

// WithFrom sets the default sender, overridden by the from_address and
// from_name parameters.
func WithFrom(address, name string) Option {
	return func(o *options) {
		o.fromAddress = address
		o.fromName = name
	}
}

// WithDateLayout sets the layout of the now parameter for a language.
func WithDateLayout(language, layout string) Option {
	return func(o *options) {
		o.layouts = maps.Clone(o.layouts)
		o.layouts[language] = layout
	}
}

// WithDefaultDateLayout sets the layout used for other languages.
func WithDefaultDateLayout(layout string) Option {
	return func(o *options) {
		if layout != "" {
			o.defaultLayout = layout
		}
	}
}

// WithClock sets the time source of the now parameter.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
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
