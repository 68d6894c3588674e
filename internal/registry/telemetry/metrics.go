// Package telemetry wires OpenTelemetry metrics to a Prometheus registry.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/agentregistry-dev/promptregistry"

// Outcome labels recorded for every operation.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics records prompt operation counts and latencies.
type Metrics struct {
	registry   *prometheus.Registry
	provider   *sdkmetric.MeterProvider
	meter      metric.Meter
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// New builds a meter provider exporting to a private Prometheus registry and
// starts Go runtime instrumentation.
func New(serviceName, serviceVersion string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}
	m.registry = registry
	m.provider = provider
	return m, nil
}

// Noop returns Metrics that record nothing. Handler serves an empty registry.
func Noop() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(meterName))
	m.registry = prometheus.NewRegistry()
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	operations, err := meter.Int64Counter(
		"promptregistry.operations",
		metric.WithDescription("Prompt registry operations by name and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"promptregistry.operation.duration",
		metric.WithDescription("Prompt registry operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return &Metrics{meter: meter, operations: operations, duration: duration}, nil
}

// MeterProvider exposes the provider so HTTP middleware can share it. It is
// nil for Noop metrics.
func (m *Metrics) MeterProvider() metric.MeterProvider {
	if m.provider == nil {
		return noop.NewMeterProvider()
	}
	return m.provider
}

// Record adds one observation for operation.
func (m *Metrics) Record(ctx context.Context, operation, outcome string, started time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
