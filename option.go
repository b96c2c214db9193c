package notify

import (
	"log/slog"
	"maps"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/notify/catalog"
	"github.com/rbaliyan/notify/content"
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/retry"
	"github.com/rbaliyan/notify/store"
	"github.com/rbaliyan/notify/theme"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second // default graceful shutdown timeout
	MinShutdownTimeout     = 1 * time.Second  // minimum shutdown timeout

	// Concurrency limits
	DefaultMaxConcurrentDispatches = 10 // max concurrent Notify/NotifyAll calls per service
	DefaultBulkConcurrency         = 1  // recipients processed at once by a bulk call

	// DefaultFallbackLanguage is used by the default catalog.
	DefaultFallbackLanguage = "en"
)

// options holds notify configuration.
type options struct {
	store     store.Store
	catalog   catalog.Catalog
	renderer  theme.Renderer
	themeOpts []theme.Option
	registry  *provider.Registry
	contacts  *ContactResolver
	content   *content.Registry
	resolver  RecipientResolver
	logger    *slog.Logger

	// drivers overrides the registry default per channel.
	drivers map[provider.Capability]string

	plugins []Plugin

	// Concurrency limits
	maxConcurrentDispatches int
	bulkConcurrency         int

	// Shutdown
	shutdownTimeout time.Duration

	// Store connection
	connectRetry retry.Config

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventTransport        transport.Transport     // Event transport (optional, uses noop if nil)
	redisClient           redis.UniversalClient   // Redis client for event transport (optional, uses noop if nil)
	onEventPublishFailure EventPublishFailureFunc // Callback for event publish failures (always set)

	now func() time.Time
}

// EventPublishFailureFunc is called when an event fails to publish.
// The eventName is the name of the event (e.g., "ChannelDispatched"), and err is the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
// If the callback panics, the panic is logged and suppressed to prevent cascading failures.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:                  slog.Default(),
		drivers:                 make(map[provider.Capability]string),
		maxConcurrentDispatches: DefaultMaxConcurrentDispatches,
		bulkConcurrency:         DefaultBulkConcurrency,
		shutdownTimeout:         DefaultShutdownTimeout,
		connectRetry:            retry.DefaultConfig(),
		now:                     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.catalog == nil {
		o.catalog = catalog.NewMap(DefaultFallbackLanguage)
	}
	if o.contacts == nil {
		o.contacts = NewContactResolver()
	}
	if o.content == nil {
		o.content = content.DefaultRegistry()
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a notify service, router or bulk dispatcher.
type Option func(*options)

// --- Core Options ---

// WithStore sets the template store (required by NewService).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithRegistry sets the provider registry (required).
func WithRegistry(r *provider.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithCatalog sets the translation catalog used for template defaults.
// Default is an empty catalog, so every default is a lookup miss.
func WithCatalog(c catalog.Catalog) Option {
	return func(o *options) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithRenderer replaces the template resolver. The store is still
// connected and closed by the service.
func WithRenderer(r theme.Renderer) Option {
	return func(o *options) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithThemeOptions passes options to the template resolver built by the service.
func WithThemeOptions(opts ...theme.Option) Option {
	return func(o *options) {
		o.themeOpts = append(o.themeOpts, opts...)
	}
}

// WithContactResolver sets the address resolver.
func WithContactResolver(r *ContactResolver) Option {
	return func(o *options) {
		if r != nil {
			o.contacts = r
		}
	}
}

// WithContentRegistry sets the per-channel payload formatters.
// Default is content.DefaultRegistry().
func WithContentRegistry(r *content.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.content = r
		}
	}
}

// WithRecipientResolver sets the resolver used by NotifyIDs.
func WithRecipientResolver(r RecipientResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithDriver selects the driver of a channel, overriding the registry default.
func WithDriver(c provider.Capability, driver string) Option {
	return func(o *options) {
		o.drivers[c] = driver
	}
}

// WithDrivers selects several drivers at once.
func WithDrivers(drivers map[provider.Capability]string) Option {
	return func(o *options) {
		maps.Copy(o.drivers, drivers)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// --- Plugin/Extension Options ---

// WithPlugin registers a plugin with the notify service.
// Multiple plugins can be registered by calling this option multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// When enabled, spans are created for render, dispatch and bulk operations.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for telemetry and event bus names.
// Default is "notify".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentDispatches sets the maximum number of concurrent Notify,
// NotifyAll and NotifyIDs calls. Close waits for in-flight calls.
// Default is 10.
func WithMaxConcurrentDispatches(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentDispatches = n
		}
	}
}

// WithMaxConcurrency sets how many recipients a bulk call processes at once.
// Results keep the input order regardless of the value.
// Default is 1 (sequential).
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bulkConcurrency = n
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight calls
// during graceful shutdown.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// WithConnectRetry sets the backoff used to connect the store.
// Default is retry.DefaultConfig().
func WithConnectRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.connectRetry = cfg
	}
}

// --- Event Options ---

// WithEventTransport sets the event transport for publishing and subscribing.
// If not provided, a noop transport is used (events are silently dropped).
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient sets a Redis client for the event transport.
// When provided, events are published to Redis Streams.
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
