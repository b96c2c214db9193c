package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rbaliyan/notify/content"
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/theme"
)

// DispatchStatus is the outcome of one channel attempt.
type DispatchStatus string

// Dispatch statuses.
const (
	StatusSent    DispatchStatus = "sent"
	StatusFailed  DispatchStatus = "failed"
	StatusSkipped DispatchStatus = "skipped"
)

// DispatchResult is the outcome of one (recipient, channel) attempt.
type DispatchResult struct {
	Recipient string
	Channel   provider.Capability
	Driver    string
	// Address is the canonical address the payload was sent to.
	Address   string
	Status    DispatchStatus
	MessageID string
	// StatusCode and Raw are copied from the provider answer, when there was one.
	StatusCode int
	Raw        []byte
	// Error is a *DispatchError for failed and skipped channels.
	Error    error
	Duration time.Duration
}

// Success reports whether the provider accepted the payload.
func (r DispatchResult) Success() bool { return r.Status == StatusSent }

// Skipped reports whether the channel was skipped for lack of an address.
func (r DispatchResult) Skipped() bool { return r.Status == StatusSkipped }

// Router dispatches rendered content to the channels of one recipient.
//
// Each channel is handled independently: a missing address skips it, any
// other problem fails it, and neither stops the remaining channels. Results
// are returned in channel order. A Router is safe for concurrent use.
type Router struct {
	contacts  *ContactResolver
	providers *provider.Registry
	content   *content.Registry
	drivers   map[provider.Capability]string
	plugins   *pluginRegistry
	otel      *otelInstrumentation
	logger    *slog.Logger

	// onResult is called after every attempt; the service publishes events from it.
	onResult func(ctx context.Context, batchID string, res DispatchResult)
}

// NewRouter creates a router over a provider registry.
//
// Plugins registered with WithPlugin run their dispatch hooks. Their Init
// and Close methods are only called by a Service.
func NewRouter(providers *provider.Registry, opts ...Option) (*Router, error) {
	o := newOptions(opts...)
	if providers != nil {
		o.registry = providers
	}
	if o.registry == nil {
		return nil, ErrRegistryRequired
	}
	instr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}
	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}
	return newRouter(o, plugins, instr), nil
}

func newRouter(o *options, plugins *pluginRegistry, instr *otelInstrumentation) *Router {
	return &Router{
		contacts:  o.contacts,
		providers: o.registry,
		content:   o.content,
		drivers:   o.drivers,
		plugins:   plugins,
		otel:      instr,
		logger:    o.logger,
	}
}

// Dispatch sends rendered to every channel of rcpt.
//
// Delivery problems are reported in the results. The returned error joins
// the wiring errors met along the way (unknown driver, contract violation,
// missing credential, unknown channel, no formatter, no content) so that callers can
// treat misconfiguration as fatal; the results are complete either way.
func (r *Router) Dispatch(ctx context.Context, rcpt Recipient, channels []provider.Capability, rendered *theme.Content) ([]DispatchResult, error) {
	return r.dispatch(ctx, "", rcpt, channels, rendered)
}

func (r *Router) dispatch(ctx context.Context, batchID string, rcpt Recipient, channels []provider.Capability, rendered *theme.Content) ([]DispatchResult, error) {
	results := make([]DispatchResult, 0, len(channels))
	var wiring []error
	for _, c := range channels {
		res, werr := r.dispatchChannel(ctx, rcpt, c, rendered)
		if werr != nil {
			wiring = append(wiring, res.Error)
		}
		if r.onResult != nil {
			r.onResult(ctx, batchID, res)
		}
		results = append(results, res)
	}
	return results, errors.Join(wiring...)
}

// dispatchChannel handles one channel. werr is non-nil when the failure is
// a wiring error.
func (r *Router) dispatchChannel(ctx context.Context, rcpt Recipient, c provider.Capability, rendered *theme.Content) (res DispatchResult, werr error) {
	start := time.Now()
	res = DispatchResult{Recipient: recipientID(rcpt), Channel: c}

	ctx, endSpan := r.otel.startSpan(ctx, "notify.Dispatch",
		attribute.String("channel", string(c)),
		attribute.String("recipient", res.Recipient),
	)
	defer func() {
		res.Duration = time.Since(start)
		r.otel.recordDispatch(ctx, c, res.Driver, res.Status, res.Duration)
		if res.Status == StatusFailed {
			endSpan(res.Error)
		} else {
			endSpan(nil)
		}
	}()

	fail := func(err error) (DispatchResult, error) {
		res.Status = StatusFailed
		res.Error = &DispatchError{Recipient: res.Recipient, Channel: c, Driver: res.Driver, Err: err}
		r.logger.Warn("notification channel failed",
			"recipient", res.Recipient, "channel", c, "driver", res.Driver, "error", err)
		if isWiringError(err) {
			return res, err
		}
		return res, nil
	}

	if rcpt == nil {
		return fail(ErrInvalidRecipient)
	}
	if !c.Valid() {
		return fail(fmt.Errorf("%w: %q", ErrInvalidChannel, c))
	}
	if rendered == nil {
		return fail(ErrNoContent)
	}

	addr, ok := r.contacts.Resolve(ctx, c, rcpt)
	if !ok {
		res.Status = StatusSkipped
		res.Error = &DispatchError{Recipient: res.Recipient, Channel: c, Err: ErrRecipientUnavailable}
		r.logger.Debug("notification channel skipped", "recipient", res.Recipient, "channel", c)
		return res, nil
	}
	res.Address = addr

	sender, err := r.providers.Resolve(c, r.drivers[c])
	if err != nil {
		return fail(err)
	}
	res.Driver = sender.Driver()

	msg, err := r.content.Format(c, rendered)
	if err != nil {
		return fail(err)
	}
	msg.To = addr

	if err := r.plugins.beforeDispatch(ctx, rcpt, c, msg); err != nil {
		return fail(err)
	}

	resp, err := safeSend(ctx, sender, msg)
	if resp != nil {
		res.MessageID = resp.MessageID
		res.StatusCode = resp.StatusCode
		res.Raw = resp.Raw
	}
	if err == nil && (resp == nil || !resp.Success) {
		detail := "no response"
		if resp != nil && resp.Error != "" {
			detail = resp.Error
		}
		err = fmt.Errorf("%w: %s", ErrDeliveryRejected, detail)
	}
	if err != nil {
		res, werr = fail(err)
		r.plugins.afterDispatch(ctx, rcpt, res)
		return res, werr
	}

	res.Status = StatusSent
	r.logger.Debug("notification channel sent",
		"recipient", res.Recipient, "channel", c, "driver", res.Driver, "message_id", res.MessageID)
	r.plugins.afterDispatch(ctx, rcpt, res)
	return res, nil
}

// safeSend calls the sender, turning a panic into an error.
func safeSend(ctx context.Context, s provider.Sender, msg *provider.Message) (resp *provider.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = fmt.Errorf("notify: %s driver panic: %v", s.Driver(), p)
		}
	}()
	return s.Send(ctx, msg)
}

// isWiringError reports whether err is a configuration problem rather than
// a delivery failure.
func isWiringError(err error) bool {
	return errors.Is(err, ErrDriverNotSupported) ||
		errors.Is(err, ErrContractViolation) ||
		errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, provider.ErrUnknownCapability) ||
		errors.Is(err, content.ErrNoContent) ||
		errors.Is(err, content.ErrUnsupportedCapability)
}

func recipientID(rcpt Recipient) string {
	if rcpt == nil {
		return ""
	}
	return rcpt.RecipientID()
}

// safeRecipientID is recipientID for labels only: a recipient that panics
// while reporting its ID is labelled "".
func safeRecipientID(rcpt Recipient) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	return recipientID(rcpt)
}
