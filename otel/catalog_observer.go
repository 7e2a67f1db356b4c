package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/marquee-labs/marquee/catalog"
)

// CatalogObserver records catalog provider fetches into OpenTelemetry. Each
// fetch gets a span plus a counter increment and a latency sample.
type CatalogObserver struct {
	tracer trace.Tracer

	fetches metric.Int64Counter
	latency metric.Float64Histogram
}

// NewCatalogObserver creates a catalog observer bound to the provided
// meter/tracer.
func NewCatalogObserver(meter metric.Meter, tracer trace.Tracer) (*CatalogObserver, error) {
	fetches, err := meter.Int64Counter(
		"marquee.catalog.fetches",
		metric.WithDescription("Number of catalog provider fetches"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"marquee.catalog.fetch.duration",
		metric.WithDescription("Catalog provider fetch duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CatalogObserver{
		tracer:  tracer,
		fetches: fetches,
		latency: latency,
	}, nil
}

// FetchStarted starts a span for the fetch and returns a finalizer that
// records the outcome.
func (o *CatalogObserver) FetchStarted(ctx context.Context, operation string) (context.Context, catalog.FetchDone) {
	if o == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "catalog.fetch",
			trace.WithAttributes(attribute.String("operation", operation)),
		)
	}

	return ctx, func(err error) {
		attrs := []attribute.KeyValue{
			attribute.String("operation", operation),
			attribute.Bool("success", err == nil),
		}

		bg := context.Background()
		options := metric.WithAttributes(attrs...)
		o.fetches.Add(bg, 1, options)
		o.latency.Record(bg, time.Since(start).Seconds(), options)

		if span == nil {
			return
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

var _ catalog.Observer = (*CatalogObserver)(nil)
