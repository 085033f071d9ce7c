package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "founder-scheduler/pipeline"

// Observability records pipeline-level instruments through OpenTelemetry and
// exposes them on a Prometheus registry. A nil *Observability is valid and
// records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	candidates     otelmetric.Int64Counter
	tracer         trace.Tracer
}

// New wires an OpenTelemetry meter provider to reg. Pass
// prometheus.DefaultRegisterer to publish on the default /metrics handler.
func New(serviceName string, reg prometheus.Registerer) (*Observability, error) {
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	runCounter, err := meter.Int64Counter(
		"pipeline_runs",
		otelmetric.WithDescription("Number of scheduling runs"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"pipeline_run_duration",
		otelmetric.WithDescription("Scheduling run duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	candidates, err := meter.Int64Counter(
		"pipeline_candidates",
		otelmetric.WithDescription("Candidates considered per kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	// spans are always sampled so every run gets a trace id; no exporter is attached
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tracerProvider,
		meter:          meter,
		runCounter:     runCounter,
		runDuration:    runDuration,
		candidates:     candidates,
		tracer:         tracerProvider.Tracer(instrumentationName),
	}, nil
}

// StartSpan starts a span on the pipeline tracer. A nil Observability falls
// back to the global provider.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRun(ctx context.Context, status string) {
	if o == nil || o.runCounter == nil {
		return
	}
	o.runCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordRunDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.runDuration == nil {
		return
	}
	o.runDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordCandidates counts candidates of one kind by outcome (scheduled,
// unscheduled, skipped).
func (o *Observability) RecordCandidates(ctx context.Context, kind, outcome string, n int) {
	if o == nil || o.candidates == nil || n == 0 {
		return
	}
	o.candidates.Add(ctx, int64(n), otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	return o.meterProvider.Shutdown(ctx)
}
