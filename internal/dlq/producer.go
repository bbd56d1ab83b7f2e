// Package dlq implements the dead letter queue: parking messages that
// exhausted their consumer attempts, and the operator surface for
// inspecting, requeueing and purging dead-lettered orders.
package dlq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/orders/internal/messaging"
)

// Producer publishes failed deliveries onto the dead letter queue with
// enough metadata to diagnose them later.
type Producer struct {
	publisher *messaging.Publisher
	queue     string
}

// NewProducer creates a dead letter producer targeting the given queue.
func NewProducer(publisher *messaging.Publisher, queue string) *Producer {
	return &Producer{publisher: publisher, queue: queue}
}

// Send parks a delivery on the dead letter queue. The original body is
// preserved; the source queue and failure cause travel in headers.
func (p *Producer) Send(ctx context.Context, queue string, delivery amqp.Delivery, cause error) error {
	headers := amqp.Table{
		"x-original-queue":   queue,
		"x-original-headers": delivery.Headers,
		"x-error":            cause.Error(),
		"x-failed-at":        time.Now().UTC().Format(time.RFC3339),
	}

	return p.publisher.Publish(ctx, p.queue, delivery.MessageId, delivery.Body, headers)
}
