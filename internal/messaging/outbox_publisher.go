package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// OutboxEventPublisher delivers staged outbox events to the broker. It
// implements the outbox use case's EventPublisher interface.
type OutboxEventPublisher struct {
	publisher *Publisher
}

// NewOutboxEventPublisher creates the broker adapter for outbox delivery.
func NewOutboxEventPublisher(publisher *Publisher) *OutboxEventPublisher {
	return &OutboxEventPublisher{publisher: publisher}
}

// Publish sends the event to its topic. The outbox event id doubles as
// the broker message id so consumers deduplicate redelivered events.
func (p *OutboxEventPublisher) Publish(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return p.publisher.Publish(ctx, event.Topic, event.ID.String(), []byte(event.Payload), deliveryHeaders(event))
}

// deliveryHeaders merges the caller-supplied event headers with the
// envelope metadata. The envelope keys win on collision.
func deliveryHeaders(event *outboxDomain.OutboxEvent) amqp.Table {
	headers := amqp.Table{}
	for key, value := range event.Headers {
		headers[key] = value
	}
	headers["event_type"] = event.EventType
	headers["aggregate_type"] = event.AggregateType
	headers["aggregate_id"] = event.AggregateID.String()
	headers["partition_key"] = event.PartitionKey
	return headers
}
