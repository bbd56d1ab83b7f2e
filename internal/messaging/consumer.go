package messaging

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	apperrors "github.com/allisson/orders/internal/errors"
)

// ConsumerConfig carries consumer settings.
type ConsumerConfig struct {
	QueueName     string
	ConsumerTag   string
	PrefetchCount int
	// HandlerTimeout bounds a single message handling call.
	HandlerTimeout time.Duration
	// ReconnectDelay is the pause before re-entering the consume loop
	// after a channel error.
	ReconnectDelay time.Duration
}

// MessageHandler processes one delivery. Returning nil acks the message;
// returning an error nacks it back onto the queue.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer reads from a queue and feeds deliveries to a handler.
type Consumer struct {
	conn    *Connection
	config  ConsumerConfig
	handler MessageHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewConsumer creates a new consumer on the shared connection.
func NewConsumer(conn *Connection, config ConsumerConfig, handler MessageHandler, logger *slog.Logger) *Consumer {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	return &Consumer{
		conn:    conn,
		config:  config,
		handler: handler,
		logger:  logger,
	}
}

// Start runs the consume loop until the context is cancelled or Stop is
// called. Channel failures re-enter the loop after ReconnectDelay.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consume(ctx); err != nil {
				if c.logger != nil {
					c.logger.Warn("consumer error",
						slog.String("queue", c.config.QueueName),
						slog.String("error", err.Error()),
					)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.config.ReconnectDelay):
				}
			}
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}

	if c.config.PrefetchCount > 0 {
		if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return apperrors.Wrap(err, "failed to set prefetch")
		}
	}

	msgs, err := ch.Consume(
		c.config.QueueName,
		c.config.ConsumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return apperrors.Wrapf(err, "failed to consume from %s", c.config.QueueName)
	}

	if c.logger != nil {
		c.logger.Info("consuming", slog.String("queue", c.config.QueueName))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return apperrors.New("delivery channel closed")
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, delivery amqp.Delivery) {
	if c.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.HandlerTimeout)
		defer cancel()
	}

	if err := c.handler(ctx, delivery); err != nil {
		if c.logger != nil {
			c.logger.Error("message handling failed",
				slog.String("queue", c.config.QueueName),
				slog.String("message_id", delivery.MessageId),
				slog.String("error", err.Error()),
			)
		}
		_ = delivery.Nack(false, true) // requeue on error
		return
	}

	_ = delivery.Ack(false)
}

// Stop cancels the consume loop.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}
