package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics records the order lifecycle counters: state transitions,
// recorded failures, retry scheduling, dead letter traffic and message
// deduplication.
type OrderMetrics interface {
	RecordTransition(ctx context.Context, to string)
	RecordFailure(ctx context.Context, errorType, phase string)
	RecordRetryScheduled(ctx context.Context)
	RecordDeadLettered(ctx context.Context, errorType string)
	RecordDuplicateMessage(ctx context.Context, queue string)
	RecordOutboxDelivery(ctx context.Context, status string)
}

// orderMetrics implements OrderMetrics using OpenTelemetry metrics.
type orderMetrics struct {
	transitionCounter metric.Int64Counter
	failureCounter    metric.Int64Counter
	retryCounter      metric.Int64Counter
	deadLetterCounter metric.Int64Counter
	duplicateCounter  metric.Int64Counter
	outboxCounter     metric.Int64Counter
}

// NewOrderMetrics creates the order lifecycle counters on the provided
// meter provider. The namespace prefixes every metric name.
func NewOrderMetrics(meterProvider metric.MeterProvider, namespace string) (OrderMetrics, error) {
	meter := meterProvider.Meter(namespace)

	transitionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_order_transitions_total", namespace),
		metric.WithDescription("Total number of order state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}

	failureCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_order_failures_total", namespace),
		metric.WithDescription("Total number of recorded order processing failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failure counter: %w", err)
	}

	retryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_order_retries_scheduled_total", namespace),
		metric.WithDescription("Total number of automatic retries scheduled"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry counter: %w", err)
	}

	deadLetterCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_order_dead_lettered_total", namespace),
		metric.WithDescription("Total number of orders escalated to the dead letter queue"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dead letter counter: %w", err)
	}

	duplicateCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_duplicate_messages_total", namespace),
		metric.WithDescription("Total number of duplicate messages acknowledged without processing"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duplicate counter: %w", err)
	}

	outboxCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_deliveries_total", namespace),
		metric.WithDescription("Total number of outbox delivery attempts by outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox counter: %w", err)
	}

	return &orderMetrics{
		transitionCounter: transitionCounter,
		failureCounter:    failureCounter,
		retryCounter:      retryCounter,
		deadLetterCounter: deadLetterCounter,
		duplicateCounter:  duplicateCounter,
		outboxCounter:     outboxCounter,
	}, nil
}

func (o *orderMetrics) RecordTransition(ctx context.Context, to string) {
	o.transitionCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("to_status", to)),
	)
}

func (o *orderMetrics) RecordFailure(ctx context.Context, errorType, phase string) {
	o.failureCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
			attribute.String("phase", phase),
		),
	)
}

func (o *orderMetrics) RecordRetryScheduled(ctx context.Context) {
	o.retryCounter.Add(ctx, 1)
}

func (o *orderMetrics) RecordDeadLettered(ctx context.Context, errorType string) {
	o.deadLetterCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("error_type", errorType)),
	)
}

func (o *orderMetrics) RecordDuplicateMessage(ctx context.Context, queue string) {
	o.duplicateCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("queue", queue)),
	)
}

func (o *orderMetrics) RecordOutboxDelivery(ctx context.Context, status string) {
	o.outboxCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// NoOpOrderMetrics is a no-op implementation of OrderMetrics for when
// metrics are disabled.
type NoOpOrderMetrics struct{}

// NewNoOpOrderMetrics creates a no-op OrderMetrics implementation.
func NewNoOpOrderMetrics() OrderMetrics {
	return &NoOpOrderMetrics{}
}

func (n *NoOpOrderMetrics) RecordTransition(ctx context.Context, to string)            {}
func (n *NoOpOrderMetrics) RecordFailure(ctx context.Context, errorType, phase string) {}
func (n *NoOpOrderMetrics) RecordRetryScheduled(ctx context.Context)                   {}
func (n *NoOpOrderMetrics) RecordDeadLettered(ctx context.Context, errorType string)   {}
func (n *NoOpOrderMetrics) RecordDuplicateMessage(ctx context.Context, queue string)   {}
func (n *NoOpOrderMetrics) RecordOutboxDelivery(ctx context.Context, status string)    {}
