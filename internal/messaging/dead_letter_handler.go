package messaging

import (
	"context"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/orders/internal/alert"
)

// DeadLetterProducer parks a delivery that exhausted its consumer
// attempts.
type DeadLetterProducer interface {
	Send(ctx context.Context, queue string, delivery amqp.Delivery, cause error) error
}

// AttemptTracker counts consecutive handler failures per message id.
// Counts live in process memory: a restart resets them, which only means
// a poison message gets another round of attempts.
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

// NewAttemptTracker creates an empty tracker.
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{attempts: make(map[string]int)}
}

// Inc increments and returns the failure count for a message id.
func (t *AttemptTracker) Inc(messageID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts[messageID]++
	return t.attempts[messageID]
}

// Reset forgets a message id.
func (t *AttemptTracker) Reset(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.attempts, messageID)
}

// DeadLetterHandler bounds how often a failing message is requeued.
// After maxAttempts consecutive failures the delivery is parked on the
// dead letter queue, an alert fires and the message is acked so it stops
// cycling.
func DeadLetterHandler(
	queue string,
	maxAttempts int,
	tracker *AttemptTracker,
	producer DeadLetterProducer,
	notifier alert.Notifier,
	logger *slog.Logger,
	next MessageHandler,
) MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		err := next(ctx, delivery)
		if err == nil {
			tracker.Reset(delivery.MessageId)
			return nil
		}

		attempts := tracker.Inc(delivery.MessageId)
		if attempts < maxAttempts {
			return err
		}

		tracker.Reset(delivery.MessageId)

		if sendErr := producer.Send(ctx, queue, delivery, err); sendErr != nil {
			if logger != nil {
				logger.Error("failed to park message on dead letter queue",
					slog.String("queue", queue),
					slog.String("message_id", delivery.MessageId),
					slog.String("error", sendErr.Error()),
				)
			}
			// Keep the message on the source queue rather than lose it.
			return err
		}

		if notifier != nil {
			notifier.Alert(ctx,
				"message parked on dead letter queue",
				"message "+delivery.MessageId+" from "+queue+" failed "+err.Error(),
				alert.SeverityCritical,
			)
		}
		if logger != nil {
			logger.Error("message parked on dead letter queue",
				slog.String("queue", queue),
				slog.String("message_id", delivery.MessageId),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}
}
