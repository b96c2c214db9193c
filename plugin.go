package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbaliyan/notify/provider"
)

// Plugin defines the interface for notification extensions.
// Plugins can hook into channel dispatch to add custom behavior
// such as rate limiting, suppression lists, or auditing.
//
// For observing outcomes without affecting them, use the event system
// instead (Events().ChannelDispatched, Events().BulkCompleted).
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init initializes the plugin. Called when service connects.
	Init(ctx context.Context) error
	// Close cleans up plugin resources. Called when service closes.
	Close(ctx context.Context) error
}

// DispatchHook is called before/after each channel send.
type DispatchHook interface {
	Plugin
	// BeforeDispatch is called with the formatted payload before it is sent.
	// Return an error to fail this channel; sibling channels still run.
	// The hook may modify msg.
	BeforeDispatch(ctx context.Context, rcpt Recipient, channel provider.Capability, msg *provider.Message) error
	// AfterDispatch is called with the outcome of every attempted send.
	// Errors are logged; the result is already final.
	AfterDispatch(ctx context.Context, rcpt Recipient, result DispatchResult) error
}

// pluginRegistry holds registered plugins.
type pluginRegistry struct {
	all    []Plugin
	hooks  []DispatchHook
	logger *slog.Logger
}

// newPluginRegistry creates a new plugin registry.
func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

// register adds a plugin to the registry.
func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)

	if h, ok := p.(DispatchHook); ok {
		r.hooks = append(r.hooks, h)
	}
}

// initAll initializes all plugins.
// On failure, already-initialized plugins are closed in reverse order.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes all plugins in reverse order.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// PluginError represents an error from a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func (r *pluginRegistry) beforeDispatch(ctx context.Context, rcpt Recipient, channel provider.Capability, msg *provider.Message) error {
	for _, h := range r.hooks {
		if err := h.BeforeDispatch(ctx, rcpt, channel, msg); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeDispatch", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterDispatch(ctx context.Context, rcpt Recipient, result DispatchResult) {
	for _, h := range r.hooks {
		if err := h.AfterDispatch(ctx, rcpt, result); err != nil {
			r.logger.Warn("plugin after dispatch failed",
				"plugin", h.Name(), "recipient", result.Recipient, "channel", result.Channel, "error", err)
		}
	}
}
