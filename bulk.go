package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/theme"
)

// BulkError is one error entry of a bulk dispatch.
type BulkError struct {
	Recipient string
	Channel   provider.Capability
	Err       error
}

// RecipientResult contains the outcome of one recipient within a bulk dispatch.
// Results are returned in the same order as the input recipients.
type RecipientResult struct {
	Recipient string
	// Results holds one entry per channel, in channel order. It is empty
	// when the recipient failed before dispatch.
	Results []DispatchResult
	// Err is the render or wiring error that failed every channel of the
	// recipient, or nil.
	Err error
}

// BulkResult aggregates a bulk dispatch.
//
// Accounting is per recipient: a recipient that raised no error counts
// every requested channel as a success, even when some of its channels were
// skipped or rejected by a provider. A recipient that raised an error counts
// every requested channel as a failure, with one error entry per channel.
// The per-channel outcomes are kept in Recipients.
type BulkResult struct {
	BatchID        string
	SuccessCount   int
	ErrorCount     int
	Errors         []BulkError
	TotalProcessed int
	Recipients     []RecipientResult
}

// HasFailures returns true if any recipient failed.
func (r *BulkResult) HasFailures() bool {
	if r == nil {
		return false
	}
	return r.ErrorCount > 0
}

// FailedRecipients returns the IDs of recipients that failed, in input order.
func (r *BulkResult) FailedRecipients() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, rr := range r.Recipients {
		if rr.Err != nil {
			out = append(out, rr.Recipient)
		}
	}
	return out
}

// ChannelResults returns every per-channel result with the given status,
// in input order.
func (r *BulkResult) ChannelResults(status DispatchStatus) []DispatchResult {
	if r == nil {
		return nil
	}
	var out []DispatchResult
	for _, rr := range r.Recipients {
		for _, res := range rr.Results {
			if res.Status == status {
				out = append(out, res)
			}
		}
	}
	return out
}

// Err returns an error if there are failures, nil otherwise.
func (r *BulkResult) Err() error {
	if r == nil {
		return nil
	}
	if !r.HasFailures() {
		return nil
	}
	return &BulkDispatchError{Result: r}
}

// BulkDispatchError is returned when a bulk dispatch has failed recipients.
type BulkDispatchError struct {
	Result *BulkResult
}

// Error always returns a non-empty string describing the failure.
func (e *BulkDispatchError) Error() string {
	return fmt.Sprintf("notify: bulk dispatch %s failed %d of %d channel deliveries",
		e.Result.BatchID, e.Result.ErrorCount, e.Result.TotalProcessed)
}

// Unwrap returns the error of every failed recipient.
func (e *BulkDispatchError) Unwrap() []error {
	var errs []error
	for _, rr := range e.Result.Recipients {
		if rr.Err != nil {
			errs = append(errs, rr.Err)
		}
	}
	return errs
}

// BulkDispatcher renders and dispatches a notification to many recipients.
type BulkDispatcher struct {
	renderer    theme.Renderer
	router      *Router
	concurrency int
	otel        *otelInstrumentation
	logger      *slog.Logger

	// onComplete is called with every finished batch; the service publishes events from it.
	onComplete func(ctx context.Context, n Notification, res *BulkResult, duration time.Duration)
}

// NewBulkDispatcher creates a dispatcher that renders with renderer and
// sends through router. Options other than concurrency, telemetry and
// logging are ignored; configure the router instead.
func NewBulkDispatcher(renderer theme.Renderer, router *Router, opts ...Option) (*BulkDispatcher, error) {
	if renderer == nil {
		return nil, ErrRendererRequired
	}
	if router == nil {
		return nil, ErrRegistryRequired
	}
	o := newOptions(opts...)
	instr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}
	return newBulkDispatcher(o, renderer, router, instr), nil
}

func newBulkDispatcher(o *options, renderer theme.Renderer, router *Router, instr *otelInstrumentation) *BulkDispatcher {
	return &BulkDispatcher{
		renderer:    renderer,
		router:      router,
		concurrency: o.bulkConcurrency,
		otel:        instr,
		logger:      o.logger,
	}
}

// DispatchAll renders n once per recipient and dispatches it to every channel.
//
// Only an invalid notification is returned as an error. Recipient failures
// are recorded in the result; use BulkResult.Err to turn them into an error.
func (b *BulkDispatcher) DispatchAll(ctx context.Context, recipients []Recipient, n Notification) (*BulkResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	label := func(i int) string { return safeRecipientID(recipients[i]) }
	return b.dispatchBatch(ctx, len(recipients), n, label, func(ctx context.Context, i int, batchID string) RecipientResult {
		return b.dispatchOne(ctx, batchID, recipients[i], n)
	}), nil
}

// dispatchBatch runs fn for every index and aggregates the results in index order.
// label names the recipient at an index that was never attempted.
func (b *BulkDispatcher) dispatchBatch(ctx context.Context, count int, n Notification, label func(i int) string, fn func(ctx context.Context, i int, batchID string) RecipientResult) *BulkResult {
	start := time.Now()
	res := &BulkResult{
		BatchID:    ids.NewBatchID(),
		Recipients: make([]RecipientResult, count),
	}

	ctx, endSpan := b.otel.startSpan(ctx, "notify.DispatchAll",
		attribute.String("batch_id", res.BatchID),
		attribute.Int("recipients", count),
		attribute.Int("channels", len(n.Channels)),
	)

	if b.concurrency <= 1 {
		for i := range count {
			res.Recipients[i] = fn(ctx, i, res.BatchID)
		}
	} else {
		b.fanOut(ctx, count, res, label, fn)
	}

	channels := len(n.Channels)
	for _, rr := range res.Recipients {
		if rr.Err == nil {
			res.SuccessCount += channels
			continue
		}
		res.ErrorCount += channels
		for _, c := range n.Channels {
			res.Errors = append(res.Errors, BulkError{Recipient: rr.Recipient, Channel: c, Err: rr.Err})
		}
	}
	res.TotalProcessed = count * channels

	duration := time.Since(start)
	b.otel.recordBulk(ctx, duration, count, res.ErrorCount)
	endSpan(res.Err())

	b.logger.Info("bulk dispatch completed",
		"batch_id", res.BatchID,
		"recipients", count,
		"channels", channels,
		"success", res.SuccessCount,
		"errors", res.ErrorCount,
		"duration", duration,
	)
	if b.onComplete != nil {
		b.onComplete(ctx, n, res, duration)
	}
	return res
}

// fanOut runs fn with at most b.concurrency calls in flight. Each call writes
// its own slot, so the input order is kept.
func (b *BulkDispatcher) fanOut(ctx context.Context, count int, res *BulkResult, label func(i int) string, fn func(ctx context.Context, i int, batchID string) RecipientResult) {
	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	for i := range count {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context ended: the remaining recipients are not attempted.
			for j := i; j < count; j++ {
				res.Recipients[j] = RecipientResult{
					Recipient: label(j),
					Err:       fmt.Errorf("notify: bulk dispatch interrupted: %w", err),
				}
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			res.Recipients[i] = fn(ctx, i, res.BatchID)
		}(i)
	}
	wg.Wait()
}

// dispatchOne renders and dispatches for a single recipient. A panic in the
// renderer or the router fails the recipient.
func (b *BulkDispatcher) dispatchOne(ctx context.Context, batchID string, rcpt Recipient, n Notification) (rr RecipientResult) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("panic while dispatching recipient", "recipient", rr.Recipient, "panic", p)
			rr.Results = nil
			rr.Err = fmt.Errorf("notify: recipient %q: panic: %v", rr.Recipient, p)
		}
	}()
	rr.Recipient = recipientID(rcpt)

	if rcpt == nil || !isValidRecipientID(rr.Recipient) {
		rr.Err = fmt.Errorf("%w: %q", ErrInvalidRecipient, rr.Recipient)
		return rr
	}

	rendered, err := b.render(ctx, rcpt, n)
	if err != nil {
		b.logger.Warn("notification render failed", "recipient", rr.Recipient, "error", err)
		rr.Err = err
		return rr
	}

	rr.Results, rr.Err = b.router.dispatch(ctx, batchID, rcpt, n.Channels, rendered)
	return rr
}

// render resolves the template of n for rcpt.
func (b *BulkDispatcher) render(ctx context.Context, rcpt Recipient, n Notification) (*theme.Content, error) {
	req := n.request(rcpt)
	ctx, endSpan := b.otel.startSpan(ctx, "notify.Render",
		attribute.String("template", req.Key().String()),
	)
	start := time.Now()
	rendered, err := b.renderer.Resolve(ctx, req)
	b.otel.recordRender(ctx, time.Since(start), req.Type, err)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("notify: render %s: %w", req.Key(), err)
	}
	return rendered, nil
}
