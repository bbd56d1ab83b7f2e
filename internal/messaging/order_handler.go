package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
)

// OrderProcessingMessage is the payload of the order processing queue.
type OrderProcessingMessage struct {
	OrderID uuid.UUID `json:"order_id"`
}

// NewOrderProcessingHandler builds the handler for the order processing
// queue: it runs the pipeline and routes failures through the recovery
// engine. A recorded failure acks the message; the retry schedule, not
// broker redelivery, owns the next attempt.
func NewOrderProcessingHandler(
	pipeline orderUsecase.PipelineUseCase,
	recovery orderUsecase.RecoveryUseCase,
	logger *slog.Logger,
) MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		var msg OrderProcessingMessage
		if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.OrderID == uuid.Nil {
			// A payload that cannot name an order will never succeed.
			if logger != nil {
				logger.Error("discarding malformed order message",
					slog.String("message_id", delivery.MessageId),
				)
			}
			return nil
		}

		err := pipeline.Process(ctx, msg.OrderID)
		if err == nil {
			return nil
		}

		if errors.Is(err, orderDomain.ErrOrderNotFound) {
			if logger != nil {
				logger.Warn("message references unknown order",
					slog.String("order_id", msg.OrderID.String()),
				)
			}
			return nil
		}

		errorType := orderUsecase.ClassifyError(err)
		phase := orderDomain.PhaseValidation
		var phaseErr *orderUsecase.PhaseError
		if errors.As(err, &phaseErr) {
			errorType = phaseErr.Type
			phase = phaseErr.Phase
		}

		if _, recordErr := recovery.RecordFailure(ctx, msg.OrderID, errorType, err.Error(), phase); recordErr != nil {
			return recordErr
		}

		return nil
	}
}
