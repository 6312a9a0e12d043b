package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/execkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"-" mapstructure:"-"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"-" mapstructure:"-"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the OpenTelemetry instruments of the execution engine.
type Metrics struct {
	executionTotal    metric.Int64Counter
	executionDuration metric.Float64Histogram
	executionActive   metric.Int64UpDownCounter
	coalescedTotal    metric.Int64Counter
	rejectionTotal    metric.Int64Counter
	stateChangeTotal  metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	executionTotal, err := meter.Int64Counter("engine.execution.total",
		metric.WithDescription("Total number of operation invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.execution.total counter: %w", err)
	}

	executionDuration, err := meter.Float64Histogram("engine.execution.duration",
		metric.WithDescription("Duration of operation invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.execution.duration histogram: %w", err)
	}

	executionActive, err := meter.Int64UpDownCounter("engine.execution.active",
		metric.WithDescription("Number of invocations currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.execution.active gauge: %w", err)
	}

	coalescedTotal, err := meter.Int64Counter("engine.coalesced.total",
		metric.WithDescription("Calls that joined an in-flight execution"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.coalesced.total counter: %w", err)
	}

	rejectionTotal, err := meter.Int64Counter("engine.rejection.total",
		metric.WithDescription("Calls rejected before invocation, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.rejection.total counter: %w", err)
	}

	stateChangeTotal, err := meter.Int64Counter("engine.state_change.total",
		metric.WithDescription("State transitions of the engine and its circuit breakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.state_change.total counter: %w", err)
	}

	return &Metrics{
		executionTotal:    executionTotal,
		executionDuration: executionDuration,
		executionActive:   executionActive,
		coalescedTotal:    coalescedTotal,
		rejectionTotal:    rejectionTotal,
		stateChangeTotal:  stateChangeTotal,
	}, nil
}

// RecordExecutionStart increments the active invocation count.
func (m *Metrics) RecordExecutionStart(ctx context.Context) {
	m.executionActive.Add(ctx, 1)
}

// RecordExecutionEnd decrements active invocations and records the completed one.
func (m *Metrics) RecordExecutionEnd(ctx context.Context, operation, status string, duration time.Duration) {
	m.executionActive.Add(ctx, -1)
	m.executionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	m.executionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordCoalesced records a call that shared another call's execution.
func (m *Metrics) RecordCoalesced(ctx context.Context, operation string) {
	m.coalescedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordRejection records a call refused before invocation.
func (m *Metrics) RecordRejection(ctx context.Context, operation, reason string) {
	m.rejectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", reason),
	))
}

// RecordStateChange records a transition of scope into state.
func (m *Metrics) RecordStateChange(ctx context.Context, scope, state string) {
	m.stateChangeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("state", state),
	))
}
