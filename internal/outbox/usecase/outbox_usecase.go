// Package usecase implements the outbox business logic and orchestrates outbox domain operations.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	CleanupEvery  time.Duration
	RetentionDays int
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetDueEvents(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// EventPublisher delivers an outbox event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
	ProcessEvents(ctx context.Context) error
	CleanupProcessed(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// OutboxUseCase implements business logic for processing outbox events
type OutboxUseCase struct {
	config    Config
	txManager database.TxManager
	repo      OutboxEventRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	repo OutboxEventRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Publish stores the event for later delivery. Callers that hold a
// transaction in the context get the event written atomically with their
// own changes; that is the whole point of the outbox.
func (uc *OutboxUseCase) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	return uc.repo.Create(ctx, event)
}

// ProcessEvents delivers due pending events to the message bus in a
// transaction. Failed deliveries are rescheduled with exponential backoff
// until the retry budget runs out, then parked as failed.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.repo.GetDueEvents(ctx, time.Now().UTC(), uc.config.BatchSize)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		if uc.logger != nil {
			uc.logger.Info("processing outbox events", slog.Int("count", len(events)))
		}

		for _, event := range events {
			if err := uc.publisher.Publish(ctx, event); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to deliver outbox event",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", event.EventType),
						slog.Any("error", err),
					)
				}

				// Reschedule with backoff, or park as failed
				event.Retries++
				errorMsg := err.Error()
				event.LastError = &errorMsg

				if event.Retries >= uc.config.MaxRetries {
					event.Status = domain.OutboxEventStatusFailed
					event.NextRetryAt = nil
				} else {
					nextRetry := time.Now().UTC().Add(domain.DeliveryBackoff(event.Retries))
					event.NextRetryAt = &nextRetry
				}

				if err := uc.repo.Update(ctx, event); err != nil {
					return err
				}
				continue
			}

			// Mark event as processed
			now := time.Now().UTC()
			event.Status = domain.OutboxEventStatusProcessed
			event.ProcessedAt = &now
			event.NextRetryAt = nil

			if err := uc.repo.Update(ctx, event); err != nil {
				return err
			}
		}

		return nil
	})
}

// CleanupProcessed deletes processed events past the retention window and
// returns how many were removed.
func (uc *OutboxUseCase) CleanupProcessed(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -uc.config.RetentionDays)

	deleted, err := uc.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 && uc.logger != nil {
		uc.logger.Info("cleaned up processed outbox events",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}

	return deleted, nil
}

// Stats returns event counts per delivery status.
func (uc *OutboxUseCase) Stats(ctx context.Context) (*domain.Stats, error) {
	return uc.repo.Stats(ctx)
}
