package messaging

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/orders/internal/idempotency"
)

// IdempotentHandler wraps a handler with the message deduplication guard.
// Duplicate deliveries are acked without touching the inner handler. A
// failed inner handler releases its claim so the broker's redelivery gets
// processed.
//
// Guard outages degrade to at-least-once: the message is processed and
// the error logged, because dropping work is worse than repeating it.
func IdempotentHandler(
	queue string,
	guard idempotency.Guard,
	logger *slog.Logger,
	next MessageHandler,
) MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		if delivery.MessageId == "" {
			if logger != nil {
				logger.Warn("message without id, skipping deduplication",
					slog.String("queue", queue),
				)
			}
			return next(ctx, delivery)
		}

		messageID := idempotency.MessageKey(queue, delivery.MessageId)

		claimed, err := guard.CheckAndMark(ctx, messageID)
		if err != nil {
			if logger != nil {
				logger.Error("idempotency guard unavailable, processing anyway",
					slog.String("queue", queue),
					slog.String("message_id", delivery.MessageId),
					slog.String("error", err.Error()),
				)
			}
			return next(ctx, delivery)
		}

		if !claimed {
			if logger != nil {
				logger.Info("duplicate message acknowledged",
					slog.String("queue", queue),
					slog.String("message_id", delivery.MessageId),
				)
			}
			return nil
		}

		if err := next(ctx, delivery); err != nil {
			if removeErr := guard.Remove(ctx, messageID); removeErr != nil && logger != nil {
				logger.Error("failed to release message claim",
					slog.String("message_id", delivery.MessageId),
					slog.String("error", removeErr.Error()),
				)
			}
			return err
		}

		return nil
	}
}
