package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/orders/internal/dlq"
	"github.com/allisson/orders/internal/idempotency"
	"github.com/allisson/orders/internal/messaging"
	"github.com/allisson/orders/internal/scheduler"
)

// messagingComponents holds the broker and worker wiring: the shared AMQP
// connection, the idempotency guard, consumers and the maintenance
// scheduler.
type messagingComponents struct {
	redisClient  *redis.Client
	guard        idempotency.Guard
	connection   *messaging.Connection
	queueManager *messaging.QueueManager
	outboxPub    *messaging.OutboxEventPublisher
	dlqProducer  *dlq.Producer
	scheduler    *scheduler.Scheduler

	redisInit        sync.Once
	guardInit        sync.Once
	connectionInit   sync.Once
	queueManagerInit sync.Once
	outboxPubInit    sync.Once
	dlqProducerInit  sync.Once
	schedulerInit    sync.Once
	consumersInit    sync.Once
}

// RedisClient returns the redis client backing the idempotency guard.
func (c *Container) RedisClient() *redis.Client {
	c.messaging.redisInit.Do(func() {
		c.messaging.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
	return c.messaging.redisClient
}

// IdempotencyGuard returns the message deduplication guard.
func (c *Container) IdempotencyGuard() idempotency.Guard {
	c.messaging.guardInit.Do(func() {
		c.messaging.guard = idempotency.NewRedisGuard(c.RedisClient(), c.config.MessageDedupTTL, c.Logger())
	})
	return c.messaging.guard
}

// AMQPConnection returns the shared broker connection. The connection is
// not dialed until Connect is called on it.
func (c *Container) AMQPConnection() *messaging.Connection {
	c.messaging.connectionInit.Do(func() {
		c.messaging.connection = messaging.NewConnection(messaging.ConnectionConfig{
			URL:            c.config.AMQPURL,
			MaxReconnects:  c.config.AMQPMaxReconnects,
			ReconnectDelay: c.config.AMQPReconnectDelay,
		}, c.Logger())
	})
	return c.messaging.connection
}

// QueueManager returns the manager owning publishers and consumers on the
// shared broker connection.
func (c *Container) QueueManager() *messaging.QueueManager {
	c.messaging.queueManagerInit.Do(func() {
		c.messaging.queueManager = messaging.NewQueueManager(c.AMQPConnection(), c.Logger())
	})
	return c.messaging.queueManager
}

// OutboxEventPublisher returns the broker adapter that delivers staged
// outbox events.
func (c *Container) OutboxEventPublisher() (*messaging.OutboxEventPublisher, error) {
	c.messaging.outboxPubInit.Do(func() {
		publisher := c.QueueManager().GetOrCreatePublisher("outbox", messaging.PublisherConfig{})
		c.messaging.outboxPub = messaging.NewOutboxEventPublisher(publisher)
	})
	return c.messaging.outboxPub, nil
}

// DLQProducer returns the producer that parks failed deliveries on the
// dead letter queue.
func (c *Container) DLQProducer() *dlq.Producer {
	c.messaging.dlqProducerInit.Do(func() {
		publisher := c.QueueManager().GetOrCreatePublisher("dead-letter", messaging.PublisherConfig{})
		c.messaging.dlqProducer = dlq.NewProducer(publisher, c.config.DeadLetterQueue)
	})
	return c.messaging.dlqProducer
}

// SetupConsumers declares the work queues and registers the consumers on
// the queue manager. The broker connection must be established first.
func (c *Container) SetupConsumers() error {
	var err error
	c.messaging.consumersInit.Do(func() {
		err = c.initConsumers()
		if err != nil {
			c.initErrors["consumers"] = err
		}
	})
	if err != nil {
		return err
	}
	if storedErr, exists := c.initErrors["consumers"]; exists {
		return storedErr
	}
	return nil
}

// Scheduler returns the maintenance scheduler with every periodic sweep
// registered: outbox delivery and cleanup, due-retry dispatch, stale
// processing cleanup and dead letter retention.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	var err error
	c.messaging.schedulerInit.Do(func() {
		c.messaging.scheduler, err = c.initScheduler()
		if err != nil {
			c.initErrors["scheduler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["scheduler"]; exists {
		return nil, storedErr
	}
	return c.messaging.scheduler, nil
}

// initConsumers wires the order processing consumer and the dead letter
// consumer. The processing handler is wrapped with the dead letter guard
// (bounded redeliveries) and the idempotency guard (duplicate suppression),
// in that order, so duplicates are dropped before they count as attempts.
func (c *Container) initConsumers() error {
	logger := c.Logger()

	pipelineUseCase, err := c.PipelineUseCase()
	if err != nil {
		return fmt.Errorf("failed to get pipeline use case for consumers: %w", err)
	}

	recoveryUseCase, err := c.RecoveryUseCase()
	if err != nil {
		return fmt.Errorf("failed to get recovery use case for consumers: %w", err)
	}

	manager := c.QueueManager()

	// Work queues are declared up front so consumers never race the first
	// publish.
	declarer := manager.GetOrCreatePublisher("outbox", messaging.PublisherConfig{})
	for _, queue := range []string{
		c.config.OrderProcessingQueue,
		c.config.OrderEventsTopic,
		c.config.OrderRefundTopic,
		c.config.DeadLetterQueue,
	} {
		if err := declarer.DeclareQueue(queue); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	processingHandler := messaging.NewOrderProcessingHandler(pipelineUseCase, recoveryUseCase, logger)
	processingHandler = messaging.DeadLetterHandler(
		c.config.OrderProcessingQueue,
		c.config.ConsumerMaxAttempts,
		messaging.NewAttemptTracker(),
		c.DLQProducer(),
		c.Notifier(),
		logger,
		processingHandler,
	)
	processingHandler = messaging.IdempotentHandler(
		c.config.OrderProcessingQueue,
		c.IdempotencyGuard(),
		logger,
		processingHandler,
	)

	manager.RegisterConsumer("order-processing", messaging.NewConsumer(
		c.AMQPConnection(),
		messaging.ConsumerConfig{
			QueueName:      c.config.OrderProcessingQueue,
			ConsumerTag:    "orders-processing-worker",
			PrefetchCount:  c.config.AMQPPrefetchCount,
			HandlerTimeout: c.config.CollaboratorTimeout * 4,
		},
		processingHandler,
		logger,
	))

	manager.RegisterConsumer("dead-letter", messaging.NewConsumer(
		c.AMQPConnection(),
		messaging.ConsumerConfig{
			QueueName:     c.config.DeadLetterQueue,
			ConsumerTag:   "orders-dead-letter-worker",
			PrefetchCount: c.config.AMQPPrefetchCount,
		},
		dlq.NewConsumerHandler(recoveryUseCase, c.Notifier(), logger),
		logger,
	))

	return nil
}

// initScheduler registers the periodic maintenance sweeps.
func (c *Container) initScheduler() (*scheduler.Scheduler, error) {
	outboxUseCase, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for scheduler: %w", err)
	}

	stateUseCase, err := c.StateUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state use case for scheduler: %w", err)
	}

	dispatcher, err := c.RetryDispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get retry dispatcher for scheduler: %w", err)
	}

	dlqUseCase, err := c.DLQUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dlq use case for scheduler: %w", err)
	}

	s := scheduler.New(c.Logger())

	s.Add(scheduler.Task{
		Name:     "outbox-delivery",
		Interval: c.config.OutboxDeliveryInterval,
		Run:      outboxUseCase.ProcessEvents,
	})
	s.Add(scheduler.Task{
		Name:     "outbox-cleanup",
		Interval: c.config.OutboxCleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := outboxUseCase.CleanupProcessed(ctx)
			return err
		},
	})
	s.Add(scheduler.Task{
		Name:     "retry-dispatch",
		Interval: c.config.RetrySweepInterval,
		Run: func(ctx context.Context) error {
			_, err := dispatcher.DispatchDueRetries(ctx)
			return err
		},
	})
	s.Add(scheduler.Task{
		Name:     "stale-processing",
		Interval: c.config.StaleSweepInterval,
		Run: func(ctx context.Context) error {
			_, err := stateUseCase.CleanupStale(ctx)
			return err
		},
	})
	s.Add(scheduler.Task{
		Name:     "dlq-cleanup",
		Interval: c.config.DLQCleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := dlqUseCase.CleanupExpired(ctx)
			return err
		},
	})

	return s, nil
}
