package messaging

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	apperrors "github.com/allisson/orders/internal/errors"
)

// PublisherConfig carries publisher settings. With an empty Exchange the
// routing key addresses a queue directly through the default exchange.
type PublisherConfig struct {
	Exchange  string
	Mandatory bool
}

// Publisher sends persistent messages to the broker.
type Publisher struct {
	conn   *Connection
	config PublisherConfig
}

// NewPublisher creates a new publisher on the shared connection.
func NewPublisher(conn *Connection, config PublisherConfig) *Publisher {
	return &Publisher{
		conn:   conn,
		config: config,
	}
}

// Publish sends a persistent message to the routing key. The message id
// travels with the message so consumers can deduplicate redeliveries.
func (p *Publisher) Publish(
	ctx context.Context,
	routingKey string,
	messageID string,
	body []byte,
	headers amqp.Table,
) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
	}

	err = ch.PublishWithContext(
		ctx,
		p.config.Exchange,
		routingKey,
		p.config.Mandatory,
		false, // immediate
		publishing,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to publish message")
	}

	return nil
}

// DeclareQueue declares a durable queue, creating it when missing.
func (p *Publisher) DeclareQueue(queueName string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return apperrors.Wrapf(err, "failed to declare queue %s", queueName)
	}
	return nil
}
