package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/rbaliyan/notify/config"
	"github.com/rbaliyan/notify/drivers"
	"github.com/rbaliyan/notify/retry"
	"github.com/rbaliyan/notify/store"
	"github.com/rbaliyan/notify/theme"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service routes notifications to recipients.
// It owns the template store connection, the event bus and the plugins.
type Service interface {
	ServiceHealth

	// Connect connects the template store, starts the event bus and initializes plugins.
	Connect(ctx context.Context) error
	// Close waits for in-flight calls and releases everything Connect acquired.
	Close(ctx context.Context) error

	// Notify renders n for rcpt and dispatches it to every channel of n.
	// Delivery failures are reported in the results. The error is non-nil
	// when n is invalid, rendering failed, or a channel hit a wiring error.
	Notify(ctx context.Context, rcpt Recipient, n Notification) ([]DispatchResult, error)
	// NotifyAll dispatches n to every recipient and aggregates the outcome.
	NotifyAll(ctx context.Context, recipients []Recipient, n Notification) (*BulkResult, error)
	// NotifyIDs resolves ids through the RecipientResolver, then behaves like
	// NotifyAll. Unknown IDs fail every channel.
	NotifyIDs(ctx context.Context, ids []string, n Notification) (*BulkResult, error)
	// Render returns the content n would send to rcpt without dispatching it.
	Render(ctx context.Context, rcpt Recipient, n Notification) (*theme.Content, error)

	// Events returns per-service event instances for subscribing.
	// It is nil until Connect succeeds.
	Events() *ServiceEvents
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store       store.Store
	router      *Router
	bulk        *BulkDispatcher
	logger      *slog.Logger
	opts        *options
	state       int32 // stateDisconnected, stateConnecting, or stateConnected
	plugins     *pluginRegistry
	otel        *otelInstrumentation
	dispatchSem *semaphore.Weighted // Limits concurrent calls so Close can wait for them
	eventBus    *event.Bus          // Event bus for publishing events
	events      *ServiceEvents      // Per-service event instances
}

var _ Service = (*service)(nil)

// NewService creates a new notify service.
// Call Connect() to connect the template store before sending.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}
	if o.registry == nil {
		return nil, ErrRegistryRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	renderer := o.renderer
	if renderer == nil {
		themeOpts := append([]theme.Option{theme.WithLogger(o.logger)}, o.themeOpts...)
		renderer = theme.New(o.store, o.catalog, themeOpts...)
	}

	s := &service{
		store:       o.store,
		logger:      o.logger,
		opts:        o,
		plugins:     plugins,
		otel:        otelInstr,
		dispatchSem: semaphore.NewWeighted(int64(o.maxConcurrentDispatches)),
	}
	s.router = newRouter(o, plugins, otelInstr)
	s.router.onResult = s.publishDispatched
	s.bulk = newBulkDispatcher(o, renderer, s.router, otelInstr)
	s.bulk.onComplete = s.publishBulkCompleted
	return s, nil
}

// NewServiceFromConfig creates a service whose registry holds every built-in
// driver configured by cfg and whose contact resolver uses the configured
// country code. Options are applied after the configuration and can
// override both.
func NewServiceFromConfig(cfg *config.Config, opts ...Option) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	o := newOptions(opts...)
	reg, err := drivers.NewRegistry(cfg, drivers.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	base := []Option{
		WithRegistry(reg),
		WithContactResolver(NewContactResolver(WithCountryCode(cfg.CountryCode))),
	}
	return NewService(append(base, opts...)...)
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect connects the template store, starts the event bus and initializes plugins.
func (s *service) Connect(ctx context.Context) error {
	// stateDisconnected -> stateConnecting -> stateConnected
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	// Reset to disconnected on failure, set to connected on success
	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	err := retry.Do(ctx, s.opts.connectRetry, func(ctx context.Context) error {
		err := s.store.Connect(ctx)
		if errors.Is(err, store.ErrAlreadyConnected) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		s.closeEventBus(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("notify service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates the event bus of this service and registers its events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "notify"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}

	events := newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}
	s.eventBus = bus
	s.events = events
	return nil
}

// closeEventBus closes the bus only when it holds a real transport.
func (s *service) closeEventBus(ctx context.Context) error {
	if s.eventBus == nil || (s.opts.eventTransport == nil && s.opts.redisClient == nil) {
		return nil
	}
	return s.eventBus.Close(ctx)
}

// Close waits for in-flight calls, then closes plugins, the event bus and the store.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// No new call can start once the state is disconnected. Acquiring every
	// slot waits for the running ones.
	s.logger.Info("waiting for in-flight dispatches to complete...", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.dispatchSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentDispatches)); err != nil {
		s.logger.Warn("timeout waiting for in-flight dispatches, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.dispatchSem.Release(int64(s.opts.maxConcurrentDispatches))
		s.logger.Info("all in-flight dispatches completed")
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if err := s.closeEventBus(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// acquire reserves an in-flight slot. The caller must call the returned
// release function.
func (s *service) acquire(ctx context.Context) (func(), error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := s.dispatchSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	// Close may have started while waiting for the slot.
	if !s.IsConnected() {
		s.dispatchSem.Release(1)
		return nil, ErrNotConnected
	}
	return func() { s.dispatchSem.Release(1) }, nil
}

// Notify renders n for rcpt and dispatches it to every channel of n.
func (s *service) Notify(ctx context.Context, rcpt Recipient, n Notification) ([]DispatchResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if rcpt == nil || !isValidRecipientID(rcpt.RecipientID()) {
		return nil, ErrInvalidRecipient
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rendered, err := s.bulk.render(ctx, rcpt, n)
	if err != nil {
		return nil, err
	}
	return s.router.dispatch(ctx, "", rcpt, n.Channels, rendered)
}

// Render returns the content n would send to rcpt.
func (s *service) Render(ctx context.Context, rcpt Recipient, n Notification) (*theme.Content, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if rcpt == nil || !isValidRecipientID(rcpt.RecipientID()) {
		return nil, ErrInvalidRecipient
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.bulk.render(ctx, rcpt, n)
}

// NotifyAll dispatches n to every recipient.
func (s *service) NotifyAll(ctx context.Context, recipients []Recipient, n Notification) (*BulkResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.bulk.DispatchAll(ctx, recipients, n)
}

// NotifyIDs resolves ids and dispatches n to every resolved recipient.
func (s *service) NotifyIDs(ctx context.Context, ids []string, n Notification) (*BulkResult, error) {
	if s.opts.resolver == nil {
		return nil, ErrResolverRequired
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	recipients, err := s.opts.resolver.ResolveBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) != len(ids) {
		return nil, fmt.Errorf("resolve recipients: got %d results for %d ids", len(recipients), len(ids))
	}

	label := func(i int) string { return ids[i] }
	return s.bulk.dispatchBatch(ctx, len(ids), n, label, func(ctx context.Context, i int, batchID string) RecipientResult {
		if recipients[i] == nil {
			return RecipientResult{
				Recipient: ids[i],
				Err:       fmt.Errorf("%w: %q", ErrRecipientNotFound, ids[i]),
			}
		}
		return s.bulk.dispatchOne(ctx, batchID, recipients[i], n)
	}), nil
}

// publishDispatched publishes a ChannelDispatched event for one attempt.
func (s *service) publishDispatched(ctx context.Context, batchID string, res DispatchResult) {
	if s.events == nil {
		return
	}
	ev := ChannelDispatchedEvent{
		BatchID:     batchID,
		RecipientID: res.Recipient,
		Channel:     res.Channel,
		Driver:      res.Driver,
		Status:      res.Status,
		MessageID:   res.MessageID,
		At:          s.opts.now(),
	}
	if res.Error != nil {
		ev.Error = res.Error.Error()
	}
	if err := s.events.ChannelDispatched.Publish(ctx, ev); err != nil {
		s.opts.safeEventPublishFailure("ChannelDispatched", err)
	}
}

// publishBulkCompleted publishes a BulkCompleted event for a finished batch.
func (s *service) publishBulkCompleted(ctx context.Context, n Notification, res *BulkResult, duration time.Duration) {
	if s.events == nil {
		return
	}
	ev := BulkCompletedEvent{
		BatchID:        res.BatchID,
		Channels:       slices.Clone(n.Channels),
		Recipients:     len(res.Recipients),
		SuccessCount:   res.SuccessCount,
		ErrorCount:     res.ErrorCount,
		TotalProcessed: res.TotalProcessed,
		Duration:       duration,
		CompletedAt:    s.opts.now(),
	}
	if err := s.events.BulkCompleted.Publish(ctx, ev); err != nil {
		s.opts.safeEventPublishFailure("BulkCompleted", err)
	}
}
