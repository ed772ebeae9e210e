// Package usecase implements the outbox dispatch loop that drains pending
// events and hands them to the configured event processor.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/metrics"
	"github.com/careops/scheduling/internal/outbox/domain"
	schedulingDomain "github.com/careops/scheduling/internal/scheduling/domain"
)

// Config holds outbox dispatcher configuration.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	LeaseTTL    time.Duration
}

// OutboxEventRepository defines outbox event repository operations.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	ClaimBatch(ctx context.Context, limit int, leaseTTL time.Duration) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, maxAttempts int) error
	RequeueFailed(ctx context.Context, limit int) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

// EventProcessor defines the interface for delivering claimed events.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases.
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) (int, error)
	RequeueFailed(ctx context.Context, limit int) (int64, error)
}

// OutboxUseCase drains the outbox. Claiming runs outside any business
// transaction: a claim stamps the lease and bumps the attempt counter in one
// atomic update, so a worker crash only delays redelivery until the lease
// expires. Each event's outcome is recorded individually; one poison event
// never blocks the rest of the batch.
type OutboxUseCase struct {
	config         Config
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	outboxMetrics  metrics.OutboxMetrics
	logger         *slog.Logger
}

// NewOutboxUseCase creates a new OutboxUseCase.
func NewOutboxUseCase(
	config Config,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	outboxMetrics metrics.OutboxMetrics,
	logger *slog.Logger,
) *OutboxUseCase {
	if outboxMetrics == nil {
		outboxMetrics = metrics.NewNoOpOutboxMetrics()
	}
	return &OutboxUseCase{
		config:         config,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		outboxMetrics:  outboxMetrics,
		logger:         logger,
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting outbox dispatcher",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
			slog.Int("max_attempts", uc.config.MaxAttempts),
			slog.Duration("lease_ttl", uc.config.LeaseTTL),
		)
	}

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping outbox dispatcher")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.ProcessEvents(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to process events", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessEvents claims one batch of due events and dispatches them, returning
// the number of events claimed.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) (int, error) {
	events, err := uc.outboxRepo.ClaimBatch(ctx, uc.config.BatchSize, uc.config.LeaseTTL)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	if uc.logger != nil {
		uc.logger.Info("claimed events", slog.Int("count", len(events)))
	}

	for _, event := range events {
		uc.dispatchEvent(ctx, event)
	}

	return len(events), nil
}

// RequeueFailed returns dead-lettered events to the pending queue.
func (uc *OutboxUseCase) RequeueFailed(ctx context.Context, limit int) (int64, error) {
	requeued, err := uc.outboxRepo.RequeueFailed(ctx, limit)
	if err != nil {
		return 0, err
	}

	if uc.logger != nil && requeued > 0 {
		uc.logger.Info("requeued dead-lettered events", slog.Int64("count", requeued))
	}

	return requeued, nil
}

// dispatchEvent delivers a single event and records its outcome. Marking
// failures are logged but not propagated; the lease expiry will surface the
// event again.
func (uc *OutboxUseCase) dispatchEvent(ctx context.Context, event *domain.OutboxEvent) {
	if err := uc.eventProcessor.Process(ctx, event); err != nil {
		if uc.logger != nil {
			uc.logger.Error("failed to deliver event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.EventType),
				slog.Int("attempts", event.Attempts),
				slog.Any("error", err),
			)
		}

		status := "retried"
		if event.Attempts >= uc.config.MaxAttempts {
			status = "dead_lettered"
		}
		uc.outboxMetrics.RecordDispatch(ctx, event.EventType, status)

		if markErr := uc.outboxRepo.MarkFailed(ctx, event.ID, err.Error(), uc.config.MaxAttempts); markErr != nil {
			if uc.logger != nil {
				uc.logger.Error("failed to record event failure",
					slog.String("event_id", event.ID.String()),
					slog.Any("error", markErr),
				)
			}
		}
		return
	}

	uc.outboxMetrics.RecordDispatch(ctx, event.EventType, "processed")

	if err := uc.outboxRepo.MarkProcessed(ctx, event.ID); err != nil {
		if uc.logger != nil {
			uc.logger.Error("failed to mark event processed",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err),
			)
		}
	}
}

// DefaultEventProcessor logs delivered events. Production deployments swap in
// a processor that publishes to the downstream broker.
type DefaultEventProcessor struct {
	logger *slog.Logger
}

// NewDefaultEventProcessor creates a new DefaultEventProcessor.
func NewDefaultEventProcessor(logger *slog.Logger) *DefaultEventProcessor {
	return &DefaultEventProcessor{
		logger: logger,
	}
}

// Process validates the payload and logs the event by type.
func (p *DefaultEventProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return err
	}

	switch event.EventType {
	case schedulingDomain.EventAppointmentCreated,
		schedulingDomain.EventAppointmentRescheduled,
		schedulingDomain.EventAppointmentCancelled:
		if p.logger != nil {
			p.logger.Info("delivering appointment event",
				slog.String("event_type", event.EventType),
				slog.String("aggregate_id", event.AggregateID.String()),
				slog.Any("payload", payload),
			)
		}
	default:
		if p.logger != nil {
			p.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		}
	}

	return nil
}
