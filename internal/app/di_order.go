package app

import (
	"fmt"
	"sync"

	"github.com/allisson/orders/internal/alert"
	"github.com/allisson/orders/internal/dlq"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderHTTP "github.com/allisson/orders/internal/order/http"
	orderRepository "github.com/allisson/orders/internal/order/repository"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	outboxRepository "github.com/allisson/orders/internal/outbox/repository"
	outboxUsecase "github.com/allisson/orders/internal/outbox/usecase"
)

// domainComponents holds the order domain wiring: repositories, use cases
// and their HTTP handlers.
type domainComponents struct {
	orderRepo      orderUsecase.OrderRepository
	transitionRepo orderUsecase.TransitionRepository
	outboxRepo     outboxUsecase.OutboxEventRepository
	registry       *orderUsecase.ProcessingRegistry
	notifier       alert.Notifier

	outboxUseCase   outboxUsecase.UseCase
	stateUseCase    orderUsecase.StateUseCase
	recoveryUseCase orderUsecase.RecoveryUseCase
	pipelineUseCase orderUsecase.PipelineUseCase
	retryDispatcher *orderUsecase.RetryDispatcher
	dlqUseCase      dlq.UseCase

	orderHandler    *orderHTTP.OrderHandler
	recoveryHandler *orderHTTP.RecoveryHandler

	orderRepoInit       sync.Once
	transitionRepoInit  sync.Once
	outboxRepoInit      sync.Once
	registryInit        sync.Once
	notifierInit        sync.Once
	outboxUseCaseInit   sync.Once
	stateInit           sync.Once
	recoveryInit        sync.Once
	pipelineInit        sync.Once
	dispatcherInit      sync.Once
	dlqUseCaseInit      sync.Once
	orderHandlerInit    sync.Once
	recoveryHandlerInit sync.Once
}

// OrderRepository returns the order repository instance.
func (c *Container) OrderRepository() (orderUsecase.OrderRepository, error) {
	var err error
	c.domain.orderRepoInit.Do(func() {
		c.domain.orderRepo, err = c.initOrderRepository()
		if err != nil {
			c.initErrors["orderRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderRepo"]; exists {
		return nil, storedErr
	}
	return c.domain.orderRepo, nil
}

// TransitionRepository returns the state transition repository instance.
func (c *Container) TransitionRepository() (orderUsecase.TransitionRepository, error) {
	var err error
	c.domain.transitionRepoInit.Do(func() {
		c.domain.transitionRepo, err = c.initTransitionRepository()
		if err != nil {
			c.initErrors["transitionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["transitionRepo"]; exists {
		return nil, storedErr
	}
	return c.domain.transitionRepo, nil
}

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	var err error
	c.domain.outboxRepoInit.Do(func() {
		c.domain.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.domain.outboxRepo, nil
}

// ProcessingRegistry returns the in-process registry of active pipeline runs.
func (c *Container) ProcessingRegistry() *orderUsecase.ProcessingRegistry {
	c.domain.registryInit.Do(func() {
		c.domain.registry = orderUsecase.NewProcessingRegistry()
	})
	return c.domain.registry
}

// Notifier returns the operator alert notifier.
func (c *Container) Notifier() alert.Notifier {
	c.domain.notifierInit.Do(func() {
		c.domain.notifier = alert.NewSlogNotifier(c.Logger())
	})
	return c.domain.notifier
}

// OutboxUseCase returns the outbox use case instance.
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	var err error
	c.domain.outboxUseCaseInit.Do(func() {
		c.domain.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.domain.outboxUseCase, nil
}

// StateUseCase returns the order state machine use case, wrapped with
// metrics instrumentation.
func (c *Container) StateUseCase() (orderUsecase.StateUseCase, error) {
	var err error
	c.domain.stateInit.Do(func() {
		c.domain.stateUseCase, err = c.initStateUseCase()
		if err != nil {
			c.initErrors["stateUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stateUseCase"]; exists {
		return nil, storedErr
	}
	return c.domain.stateUseCase, nil
}

// RecoveryUseCase returns the error recovery use case, wrapped with
// metrics instrumentation.
func (c *Container) RecoveryUseCase() (orderUsecase.RecoveryUseCase, error) {
	var err error
	c.domain.recoveryInit.Do(func() {
		c.domain.recoveryUseCase, err = c.initRecoveryUseCase()
		if err != nil {
			c.initErrors["recoveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.domain.recoveryUseCase, nil
}

// PipelineUseCase returns the processing pipeline use case.
func (c *Container) PipelineUseCase() (orderUsecase.PipelineUseCase, error) {
	var err error
	c.domain.pipelineInit.Do(func() {
		c.domain.pipelineUseCase, err = c.initPipelineUseCase()
		if err != nil {
			c.initErrors["pipelineUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["pipelineUseCase"]; exists {
		return nil, storedErr
	}
	return c.domain.pipelineUseCase, nil
}

// RetryDispatcher returns the due-retry dispatch sweep.
func (c *Container) RetryDispatcher() (*orderUsecase.RetryDispatcher, error) {
	var err error
	c.domain.dispatcherInit.Do(func() {
		c.domain.retryDispatcher, err = c.initRetryDispatcher()
		if err != nil {
			c.initErrors["retryDispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["retryDispatcher"]; exists {
		return nil, storedErr
	}
	return c.domain.retryDispatcher, nil
}

// DLQUseCase returns the dead letter queue use case.
func (c *Container) DLQUseCase() (dlq.UseCase, error) {
	var err error
	c.domain.dlqUseCaseInit.Do(func() {
		c.domain.dlqUseCase, err = c.initDLQUseCase()
		if err != nil {
			c.initErrors["dlqUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dlqUseCase"]; exists {
		return nil, storedErr
	}
	return c.domain.dlqUseCase, nil
}

// OrderHandler returns the order HTTP handler.
func (c *Container) OrderHandler() (*orderHTTP.OrderHandler, error) {
	var err error
	c.domain.orderHandlerInit.Do(func() {
		c.domain.orderHandler, err = c.initOrderHandler()
		if err != nil {
			c.initErrors["orderHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderHandler"]; exists {
		return nil, storedErr
	}
	return c.domain.orderHandler, nil
}

// RecoveryHandler returns the dead letter and recovery stats HTTP handler.
func (c *Container) RecoveryHandler() (*orderHTTP.RecoveryHandler, error) {
	var err error
	c.domain.recoveryHandlerInit.Do(func() {
		c.domain.recoveryHandler, err = c.initRecoveryHandler()
		if err != nil {
			c.initErrors["recoveryHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryHandler"]; exists {
		return nil, storedErr
	}
	return c.domain.recoveryHandler, nil
}

// initOrderRepository creates the order repository instance.
func (c *Container) initOrderRepository() (orderUsecase.OrderRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for order repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return orderRepository.NewMySQLOrderRepository(db), nil
	case "postgres":
		return orderRepository.NewPostgreSQLOrderRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initTransitionRepository creates the state transition repository instance.
func (c *Container) initTransitionRepository() (orderUsecase.TransitionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for transition repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return orderRepository.NewMySQLTransitionRepository(db), nil
	case "postgres":
		return orderRepository.NewPostgreSQLTransitionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxRepository creates the outbox event repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	publisher, err := c.OutboxEventPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get event publisher for outbox use case: %w", err)
	}

	useCaseConfig := outboxUsecase.Config{
		Interval:      c.config.OutboxDeliveryInterval,
		BatchSize:     c.config.OutboxBatchSize,
		MaxRetries:    c.config.OutboxMaxRetries,
		CleanupEvery:  c.config.OutboxCleanupInterval,
		RetentionDays: c.config.OutboxRetentionDays,
	}

	return outboxUsecase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, publisher, c.Logger()), nil
}

// initStateUseCase creates the order state machine use case.
func (c *Container) initStateUseCase() (orderUsecase.StateUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for state use case: %w", err)
	}

	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for state use case: %w", err)
	}

	transitionRepo, err := c.TransitionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get transition repository for state use case: %w", err)
	}

	outboxUseCase, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for state use case: %w", err)
	}

	stateConfig := orderUsecase.StateConfig{
		EventTopic:  c.config.OrderEventsTopic,
		RefundTopic: c.config.OrderRefundTopic,
		StaleMaxAge: c.config.StaleProcessingMaxAge,
	}

	useCase := orderUsecase.NewStateUseCase(
		stateConfig,
		txManager,
		orderRepo,
		transitionRepo,
		outboxUseCase,
		c.ProcessingRegistry(),
		c.Logger(),
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for state use case: %w", err)
	}
	orderMetrics, err := c.OrderMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get order metrics for state use case: %w", err)
	}

	return orderUsecase.NewStateUseCaseWithMetrics(useCase, businessMetrics, orderMetrics), nil
}

// initRecoveryUseCase creates the error recovery use case.
func (c *Container) initRecoveryUseCase() (orderUsecase.RecoveryUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for recovery use case: %w", err)
	}

	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for recovery use case: %w", err)
	}

	transitionRepo, err := c.TransitionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get transition repository for recovery use case: %w", err)
	}

	outboxUseCase, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for recovery use case: %w", err)
	}

	recoveryConfig := orderUsecase.RecoveryConfig{
		Policy: orderDomain.RetryPolicy{
			MaxRetries:   c.config.RecoveryMaxRetries,
			InitialDelay: c.config.RecoveryInitialDelay,
			Multiplier:   c.config.RecoveryBackoffMultiplier,
			MaxDelay:     c.config.RecoveryMaxDelay,
		},
		BatchSize:       c.config.RetryBatchSize,
		DeadLetterTopic: c.config.DeadLetterQueue,
	}

	useCase := orderUsecase.NewRecoveryUseCase(
		recoveryConfig,
		txManager,
		orderRepo,
		transitionRepo,
		outboxUseCase,
		c.ProcessingRegistry(),
		c.Notifier(),
		c.Logger(),
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for recovery use case: %w", err)
	}
	orderMetrics, err := c.OrderMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get order metrics for recovery use case: %w", err)
	}

	return orderUsecase.NewRecoveryUseCaseWithMetrics(useCase, businessMetrics, orderMetrics), nil
}

// initPipelineUseCase creates the processing pipeline use case with the
// default collaborators.
func (c *Container) initPipelineUseCase() (orderUsecase.PipelineUseCase, error) {
	stateUseCase, err := c.StateUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state use case for pipeline use case: %w", err)
	}

	pipelineConfig := orderUsecase.PipelineConfig{
		CollaboratorTimeout: c.config.CollaboratorTimeout,
	}

	logger := c.Logger()
	return orderUsecase.NewPipelineUseCase(
		pipelineConfig,
		stateUseCase,
		orderUsecase.NewDefaultVideoProcessor(logger),
		orderUsecase.NewDefaultCampaignAssigner(logger),
		c.ProcessingRegistry(),
		logger,
	), nil
}

// initRetryDispatcher creates the due-retry dispatch sweep.
func (c *Container) initRetryDispatcher() (*orderUsecase.RetryDispatcher, error) {
	recoveryUseCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for retry dispatcher: %w", err)
	}

	pipelineUseCase, err := c.PipelineUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline use case for retry dispatcher: %w", err)
	}

	return orderUsecase.NewRetryDispatcher(recoveryUseCase, pipelineUseCase, c.Logger()), nil
}

// initDLQUseCase creates the dead letter queue use case.
func (c *Container) initDLQUseCase() (dlq.UseCase, error) {
	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for dlq use case: %w", err)
	}

	stateUseCase, err := c.StateUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state use case for dlq use case: %w", err)
	}

	recoveryUseCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for dlq use case: %w", err)
	}

	dlqConfig := dlq.Config{
		RetentionDays:    c.config.DLQRetentionDays,
		CleanupBatchSize: c.config.RetryBatchSize,
	}

	return dlq.NewUseCase(dlqConfig, orderRepo, stateUseCase, recoveryUseCase, c.Logger()), nil
}

// initOrderHandler creates the order HTTP handler.
func (c *Container) initOrderHandler() (*orderHTTP.OrderHandler, error) {
	stateUseCase, err := c.StateUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state use case for order handler: %w", err)
	}

	recoveryUseCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for order handler: %w", err)
	}

	return orderHTTP.NewOrderHandler(stateUseCase, recoveryUseCase, c.Logger()), nil
}

// initRecoveryHandler creates the dead letter and recovery stats HTTP handler.
func (c *Container) initRecoveryHandler() (*orderHTTP.RecoveryHandler, error) {
	dlqUseCase, err := c.DLQUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dlq use case for recovery handler: %w", err)
	}

	recoveryUseCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for recovery handler: %w", err)
	}

	outboxUseCase, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for recovery handler: %w", err)
	}

	return orderHTTP.NewRecoveryHandler(dlqUseCase, recoveryUseCase, outboxUseCase, c.Logger()), nil
}
