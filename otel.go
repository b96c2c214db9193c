package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/notify/provider"
)

const (
	instrumentationName = "github.com/rbaliyan/notify"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the notify service.
// The zero value is disabled.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	renderLatency   metric.Float64Histogram
	renderErrors    metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	dispatchSent    metric.Int64Counter
	dispatchFailed  metric.Int64Counter
	dispatchSkipped metric.Int64Counter
	bulkLatency     metric.Float64Histogram
	bulkRecipients  metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	o.renderLatency, err = meter.Float64Histogram(
		"notify.render.duration",
		metric.WithDescription("Duration of template renders"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.renderErrors, err = meter.Int64Counter(
		"notify.render.errors",
		metric.WithDescription("Number of failed template renders"),
	)
	if err != nil {
		return err
	}

	o.dispatchLatency, err = meter.Float64Histogram(
		"notify.dispatch.duration",
		metric.WithDescription("Duration of channel dispatches"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.dispatchSent, err = meter.Int64Counter(
		"notify.dispatch.sent",
		metric.WithDescription("Number of channels delivered to a provider"),
	)
	if err != nil {
		return err
	}

	o.dispatchFailed, err = meter.Int64Counter(
		"notify.dispatch.failed",
		metric.WithDescription("Number of failed channel dispatches"),
	)
	if err != nil {
		return err
	}

	o.dispatchSkipped, err = meter.Int64Counter(
		"notify.dispatch.skipped",
		metric.WithDescription("Number of channels skipped for lack of an address"),
	)
	if err != nil {
		return err
	}

	o.bulkLatency, err = meter.Float64Histogram(
		"notify.bulk.duration",
		metric.WithDescription("Duration of bulk dispatches"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.bulkRecipients, err = meter.Int64Counter(
		"notify.bulk.recipients",
		metric.WithDescription("Number of recipients processed by bulk dispatches"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// The returned function ends the span, recording err when non-nil.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if o == nil || !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordRender records template render metrics.
func (o *otelInstrumentation) recordRender(ctx context.Context, duration time.Duration, templateType string, err error) {
	if o == nil || !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("type", templateType),
	)

	o.renderLatency.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		o.renderErrors.Add(ctx, 1, attrs)
	}
}

// recordDispatch records channel dispatch metrics.
func (o *otelInstrumentation) recordDispatch(ctx context.Context, channel provider.Capability, driver string, status DispatchStatus, duration time.Duration) {
	if o == nil || !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("channel", string(channel)),
		attribute.String("driver", driver),
	)

	o.dispatchLatency.Record(ctx, duration.Seconds(), attrs)
	switch status {
	case StatusSent:
		o.dispatchSent.Add(ctx, 1, attrs)
	case StatusFailed:
		o.dispatchFailed.Add(ctx, 1, attrs)
	case StatusSkipped:
		o.dispatchSkipped.Add(ctx, 1, attrs)
	}
}

// recordBulk records bulk dispatch metrics.
func (o *otelInstrumentation) recordBulk(ctx context.Context, duration time.Duration, recipients, errorCount int) {
	if o == nil || !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("has_errors", errorCount > 0),
	)

	o.bulkLatency.Record(ctx, duration.Seconds(), attrs)
	o.bulkRecipients.Add(ctx, int64(recipients), attrs)
}
