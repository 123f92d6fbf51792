package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Delivery results recorded by DeliveryMetrics.
const (
	DeliveryResultSent      = "sent"
	DeliveryResultFailed    = "failed"
	DeliveryResultExhausted = "exhausted"
	DeliveryResultSkipped   = "skipped"
)

// DeliveryMetrics records per-record email delivery results and per-provider call outcomes.
type DeliveryMetrics interface {
	// RecordDelivery counts one record leaving a batch with the given result.
	// provider is the provider that decided the outcome, "none" for skipped records.
	RecordDelivery(ctx context.Context, provider, result string)

	// RecordProviderCall counts one provider call with its error class ("" on success).
	RecordProviderCall(ctx context.Context, provider string, success bool, errorClass string)
}

type deliveryMetrics struct {
	deliveries    metric.Int64Counter
	providerCalls metric.Int64Counter
}

// NewDeliveryMetrics creates DeliveryMetrics backed by OpenTelemetry counters named
// <namespace>_email_deliveries_total and <namespace>_email_provider_calls_total.
func NewDeliveryMetrics(meterProvider metric.MeterProvider, namespace string) (DeliveryMetrics, error) {
	meter := meterProvider.Meter(namespace)

	deliveries, err := meter.Int64Counter(
		fmt.Sprintf("%s_email_deliveries_total", namespace),
		metric.WithDescription("Email records processed by delivery batches, by result"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveries counter: %w", err)
	}

	providerCalls, err := meter.Int64Counter(
		fmt.Sprintf("%s_email_provider_calls_total", namespace),
		metric.WithDescription("Email provider calls, by provider and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider calls counter: %w", err)
	}

	return &deliveryMetrics{deliveries: deliveries, providerCalls: providerCalls}, nil
}

func (d *deliveryMetrics) RecordDelivery(ctx context.Context, provider, result string) {
	d.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", result),
	))
}

func (d *deliveryMetrics) RecordProviderCall(ctx context.Context, provider string, success bool, errorClass string) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	d.providerCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

// NoOpDeliveryMetrics discards everything.
type NoOpDeliveryMetrics struct{}

// NewNoOpDeliveryMetrics creates a no-op DeliveryMetrics.
func NewNoOpDeliveryMetrics() DeliveryMetrics {
	return &NoOpDeliveryMetrics{}
}

func (n *NoOpDeliveryMetrics) RecordDelivery(ctx context.Context, provider, result string) {}

func (n *NoOpDeliveryMetrics) RecordProviderCall(ctx context.Context, provider string, success bool, errorClass string) {
}
