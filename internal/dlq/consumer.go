package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/orders/internal/alert"
	"github.com/allisson/orders/internal/messaging"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
)

// parkedMessage is the fragment of a parked payload the consumer needs:
// order processing messages name their order, other payloads scan to nil.
type parkedMessage struct {
	OrderID uuid.UUID `json:"order_id"`
}

// NewConsumerHandler builds the handler for the dead letter queue itself.
// Parked messages carry their diagnosis in headers; the handler surfaces
// them to operators and acks. When the parked payload names an order, its
// failure is also recorded against the row: a message only lands here
// after the inline failure recording itself failed, so without this the
// order would sit un-held until the stale sweep caught it.
func NewConsumerHandler(
	recovery orderUsecase.RecoveryUseCase,
	notifier alert.Notifier,
	logger *slog.Logger,
) messaging.MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		originalQueue, _ := delivery.Headers["x-original-queue"].(string)
		cause, _ := delivery.Headers["x-error"].(string)

		if logger != nil {
			logger.WarnContext(ctx, "dead letter message received",
				slog.String("message_id", delivery.MessageId),
				slog.String("original_queue", originalQueue),
				slog.String("error", cause),
			)
		}

		holdParkedOrder(ctx, recovery, delivery.Body, cause, logger)

		if notifier != nil && originalQueue != "" {
			notifier.Alert(ctx,
				"dead letter message",
				"message "+delivery.MessageId+" from "+originalQueue+": "+cause,
				alert.SeverityWarning,
			)
		}

		return nil
	}
}

// holdParkedOrder records the parked failure so the order ends up held
// with its diagnosis on the row. A backstop failure is logged, never
// returned: re-parking the message onto its own queue helps nobody.
func holdParkedOrder(
	ctx context.Context,
	recovery orderUsecase.RecoveryUseCase,
	body []byte,
	cause string,
	logger *slog.Logger,
) {
	if recovery == nil {
		return
	}

	var msg parkedMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.OrderID == uuid.Nil {
		return
	}

	if cause == "" {
		cause = "message exhausted delivery attempts"
	}

	_, err := recovery.RecordFailure(
		ctx,
		msg.OrderID,
		orderDomain.ErrorTypeRetryProcessing,
		cause,
		orderDomain.PhaseRetryExecution,
	)
	if err != nil && !errors.Is(err, orderDomain.ErrOrderNotFound) && logger != nil {
		logger.ErrorContext(ctx, "failed to hold dead-lettered order",
			slog.String("order_id", msg.OrderID.String()),
			slog.Any("error", err),
		)
	}
}
