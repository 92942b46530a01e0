package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records what the consent core does, as opposed to how the
// HTTP layer is used.
//
// domain is one of "consents", "authorisations" or "expiration". status is
// "success" or "error".
type BusinessMetrics interface {
	// RecordOperation counts one finished operation.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes how long an operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordStatusTransition counts a persisted status change, for example
	// VALID to EXPIRED during an expiration sweep.
	RecordStatusTransition(ctx context.Context, domain, from, to string)
}

type businessMetrics struct {
	operations  metric.Int64Counter
	durations   metric.Float64Histogram
	transitions metric.Int64Counter
}

// NewBusinessMetrics registers the business instruments on meterProvider.
// Every instrument name is prefixed with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	b := &businessMetrics{}

	var err error
	b.operations, err = meter.Int64Counter(
		namespace+"_operations_total",
		metric.WithDescription("Consent core operations by domain, operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	b.durations, err = meter.Float64Histogram(
		namespace+"_operation_duration_seconds",
		metric.WithDescription("Consent core operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	b.transitions, err = meter.Int64Counter(
		namespace+"_status_transitions_total",
		metric.WithDescription("Persisted status changes of consents and authorisations"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}

	return b, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordStatusTransition(ctx context.Context, domain, from, to string) {
	b.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// NoOpBusinessMetrics discards every measurement. It is used when
// METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a BusinessMetrics that records nothing.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (n *NoOpBusinessMetrics) RecordStatusTransition(context.Context, string, string, string) {}
