package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PendingCounter reports the number of outbox events awaiting dispatch.
type PendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// OutboxMetrics records dispatcher activity and observes queue depth.
type OutboxMetrics interface {
	// RecordDispatch records one dispatch attempt outcome. Status is one of
	// "processed", "retried" or "dead_lettered".
	RecordDispatch(ctx context.Context, eventType, status string)
}

type outboxMetrics struct {
	dispatchCounter metric.Int64Counter
}

// NewOutboxMetrics creates the dispatcher instruments and registers an
// observable gauge that samples the pending queue depth on every scrape.
func NewOutboxMetrics(
	meterProvider metric.MeterProvider,
	namespace string,
	pending PendingCounter,
) (OutboxMetrics, error) {
	meter := meterProvider.Meter(namespace)

	dispatchCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_dispatches_total", namespace),
		metric.WithDescription("Total number of outbox dispatch attempts"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}

	if pending != nil {
		_, err = meter.Int64ObservableGauge(
			fmt.Sprintf("%s_outbox_pending_events", namespace),
			metric.WithDescription("Number of outbox events awaiting dispatch"),
			metric.WithUnit("{event}"),
			metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
				count, err := pending.CountPending(ctx)
				if err != nil {
					return err
				}
				observer.Observe(count)
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create pending gauge: %w", err)
		}
	}

	return &outboxMetrics{dispatchCounter: dispatchCounter}, nil
}

// RecordDispatch increments the dispatch counter with event_type and status labels.
func (o *outboxMetrics) RecordDispatch(ctx context.Context, eventType, status string) {
	o.dispatchCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("status", status),
		),
	)
}

// NoOpOutboxMetrics is a no-op implementation for when metrics are disabled.
type NoOpOutboxMetrics struct{}

// NewNoOpOutboxMetrics creates a no-op OutboxMetrics implementation.
func NewNoOpOutboxMetrics() OutboxMetrics {
	return &NoOpOutboxMetrics{}
}

// RecordDispatch does nothing when metrics are disabled.
func (n *NoOpOutboxMetrics) RecordDispatch(ctx context.Context, eventType, status string) {
}
