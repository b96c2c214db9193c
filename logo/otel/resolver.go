// Package otel provides OpenTelemetry instrumentation for logo stores.
package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rbaliyan/notify/logo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/notify/logo/otel"

// Store wraps a logo.Store with tracing and metrics.
type Store struct {
	backend logo.Store
	opts    *options
	tracer  trace.Tracer

	resolveLatency metric.Float64Histogram
	resolveErrors  metric.Int64Counter
	uploadLatency  metric.Float64Histogram
	uploadBytes    metric.Int64Counter
	uploadErrors   metric.Int64Counter
}

var _ logo.Store = (*Store)(nil)

// New creates an instrumented store around backend.
func New(backend logo.Store, opts ...Option) (*Store, error) {
	o := &options{
		tracingEnabled: true,
		metricsEnabled: true,
		serviceName:    "notify",
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Store{backend: backend, opts: o}
	if o.tracingEnabled {
		s.tracer = o.tracerProvider.Tracer(instrumentationName)
	}
	if o.metricsEnabled {
		if err := s.initMetrics(o.meterProvider); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}
	return s, nil
}

func (s *Store) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)
	var err error

	if s.resolveLatency, err = meter.Float64Histogram("logo.resolve.duration",
		metric.WithDescription("Duration of logo URL resolution"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if s.resolveErrors, err = meter.Int64Counter("logo.resolve.errors",
		metric.WithDescription("Number of failed logo URL resolutions")); err != nil {
		return err
	}
	if s.uploadLatency, err = meter.Float64Histogram("logo.upload.duration",
		metric.WithDescription("Duration of logo uploads"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if s.uploadBytes, err = meter.Int64Counter("logo.upload.bytes",
		metric.WithDescription("Total bytes uploaded"),
		metric.WithUnit("By")); err != nil {
		return err
	}
	if s.uploadErrors, err = meter.Int64Counter("logo.upload.errors",
		metric.WithDescription("Number of failed logo uploads")); err != nil {
		return err
	}
	return nil
}

func (s *Store) start(ctx context.Context, name string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, nil
	}
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient))
}

func finish(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ResolveURL resolves ref with tracing and metrics.
func (s *Store) ResolveURL(ctx context.Context, ref string) (string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("logo.scheme", logo.Scheme(ref)),
		attribute.String("service.name", s.opts.serviceName),
	}
	ctx, span := s.start(ctx, "logo.resolve", attrs)
	start := time.Now()

	u, err := s.backend.ResolveURL(ctx, ref)

	if s.opts.metricsEnabled {
		metricAttrs := metric.WithAttributes(attrs...)
		s.resolveLatency.Record(ctx, time.Since(start).Seconds(), metricAttrs)
		if err != nil {
			s.resolveErrors.Add(ctx, 1, metricAttrs)
		}
	}
	finish(span, err)
	return u, err
}

// Upload stores a logo with tracing and metrics.
func (s *Store) Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("logo.content_type", contentType),
		attribute.String("service.name", s.opts.serviceName),
	}
	ctx, span := s.start(ctx, "logo.upload", attrs)
	start := time.Now()

	cr := &countingReader{reader: content}
	uri, err := s.backend.Upload(ctx, filename, contentType, cr)

	if s.opts.metricsEnabled {
		metricAttrs := metric.WithAttributes(attrs...)
		s.uploadLatency.Record(ctx, time.Since(start).Seconds(), metricAttrs)
		s.uploadBytes.Add(ctx, cr.bytes, metricAttrs)
		if err != nil {
			s.uploadErrors.Add(ctx, 1, metricAttrs)
		}
	}
	if span != nil && err == nil {
		span.SetAttributes(attribute.String("logo.uri", uri), attribute.Int64("logo.bytes", cr.bytes))
	}
	finish(span, err)
	return uri, err
}

type countingReader struct {
	reader io.Reader
	bytes  int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytes += int64(n)
	return n, err
}
