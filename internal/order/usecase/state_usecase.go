package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
	appvalidation "github.com/allisson/orders/internal/validation"
)

const orderAggregateType = "order"

// StateConfig carries the settings of the order state machine use case.
type StateConfig struct {
	// EventTopic is the destination for order lifecycle events.
	EventTopic string
	// RefundTopic is the destination for refund requests emitted on
	// cancellation.
	RefundTopic string
	// StaleMaxAge is how long an in-flight order may go without pipeline
	// progress before the stale sweep forces it to holding.
	StaleMaxAge time.Duration
}

// CreateOrderInput is the payload for creating an order.
type CreateOrderInput struct {
	SourceRef  string `json:"source_ref"`
	TargetRef  string `json:"target_ref"`
	Quantity   int    `json:"quantity"`
	MaxRetries int    `json:"max_retries"`
}

// Validate checks the input fields.
func (i *CreateOrderInput) Validate() error {
	err := validation.ValidateStruct(i,
		validation.Field(&i.SourceRef, validation.Required, appvalidation.NotBlank, appvalidation.NoWhitespace),
		validation.Field(&i.TargetRef, validation.Required, appvalidation.NotBlank, appvalidation.NoWhitespace),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&i.MaxRetries, validation.Min(0)),
	)
	return appvalidation.WrapValidationError(err)
}

type statusChangedEvent struct {
	OrderID    uuid.UUID          `json:"order_id"`
	FromStatus orderDomain.Status `json:"from_status"`
	ToStatus   orderDomain.Status `json:"to_status"`
	Reason     string             `json:"reason"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type refundRequestedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	SourceRef  string    `json:"source_ref"`
	TargetRef  string    `json:"target_ref"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// stateUseCase implements the StateUseCase interface.
type stateUseCase struct {
	cfg            StateConfig
	txManager      database.TxManager
	orderRepo      OrderRepository
	transitionRepo TransitionRepository
	outbox         EventOutbox
	registry       *ProcessingRegistry
	logger         *slog.Logger
	nowFn          func() time.Time
}

// NewStateUseCase creates a new order state machine use case.
func NewStateUseCase(
	cfg StateConfig,
	txManager database.TxManager,
	orderRepo OrderRepository,
	transitionRepo TransitionRepository,
	outbox EventOutbox,
	registry *ProcessingRegistry,
	logger *slog.Logger,
) StateUseCase {
	return &stateUseCase{
		cfg:            cfg,
		txManager:      txManager,
		orderRepo:      orderRepo,
		transitionRepo: transitionRepo,
		outbox:         outbox,
		registry:       registry,
		logger:         logger,
		nowFn:          time.Now,
	}
}

// Create validates the input and persists a new pending order, staging an
// order.created event in the same transaction.
func (s *stateUseCase) Create(ctx context.Context, input *CreateOrderInput) (*orderDomain.Order, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	maxRetries := input.MaxRetries
	if maxRetries == 0 {
		maxRetries = orderDomain.DefaultRetryPolicy().MaxRetries
	}

	order := &orderDomain.Order{
		ID:         uuid.Must(uuid.NewV7()),
		Status:     orderDomain.StatusPending,
		SourceRef:  input.SourceRef,
		TargetRef:  input.TargetRef,
		Quantity:   input.Quantity,
		MaxRetries: maxRetries,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return err
		}

		return s.publishStatusEvent(txCtx, order, "", order.Status, "order created")
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "order created",
			slog.String("order_id", order.ID.String()),
			slog.String("source_ref", order.SourceRef),
			slog.Int("quantity", order.Quantity),
		)
	}

	return order, nil
}

// Get retrieves an order by id.
func (s *stateUseCase) Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// History retrieves the transition audit log of an order, oldest first.
func (s *stateUseCase) History(ctx context.Context, id uuid.UUID) ([]*orderDomain.StateTransition, error) {
	if _, err := s.orderRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.transitionRepo.ListByOrder(ctx, id)
}

// Transition moves an order along an edge of the state machine. The status
// change, its audit record and the resulting integration events commit in
// a single transaction; a version conflict surfaces as
// ErrConcurrentModification.
func (s *stateUseCase) Transition(
	ctx context.Context,
	id uuid.UUID,
	to orderDomain.Status,
	reason string,
) (*orderDomain.Order, error) {
	var order *orderDomain.Order

	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		if !orderDomain.CanTransition(order.Status, to) {
			return orderDomain.NewTransitionError(order.Status, to)
		}

		from := order.Status
		order.Status = to
		if to == orderDomain.StatusCancelled {
			// A cancelled order must never be picked up by the retry
			// sweep.
			order.NextRetryAt = nil
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return err
		}

		if err := s.recordTransition(txCtx, order.ID, from, to, reason); err != nil {
			return err
		}

		if err := s.publishStatusEvent(txCtx, order, from, to, reason); err != nil {
			return err
		}

		if to == orderDomain.StatusCancelled {
			return s.publishRefundEvent(txCtx, order, reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.trackProcessing(order, to)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "order transitioned",
			slog.String("order_id", order.ID.String()),
			slog.String("to_status", string(to)),
			slog.String("reason", reason),
		)
	}

	return order, nil
}

// CleanupStale forces orders with no pipeline progress within StaleMaxAge
// into holding so they become visible to operators instead of hanging
// forever. Returns the number of orders moved.
func (s *stateUseCase) CleanupStale(ctx context.Context) (int, error) {
	cutoff := s.nowFn().UTC().Add(-s.cfg.StaleMaxAge)
	stale := s.registry.StaleBefore(cutoff)

	var moved int
	for _, id := range stale {
		_, err := s.Transition(ctx, id, orderDomain.StatusHolding, "processing timeout")
		switch {
		case err == nil:
			moved++
		case errors.Is(err, orderDomain.ErrOrderNotFound),
			errors.Is(err, orderDomain.ErrInvalidTransition),
			errors.Is(err, orderDomain.ErrConcurrentModification):
			// The order moved on without this instance noticing. Drop the
			// stale entry.
			s.registry.Remove(id)
			if s.logger != nil {
				s.logger.WarnContext(ctx, "stale processing entry dropped",
					slog.String("order_id", id.String()),
					slog.String("error", err.Error()),
				)
			}
		default:
			return moved, err
		}
	}

	return moved, nil
}

// ActiveProcessing returns a snapshot of orders currently in flight on
// this instance.
func (s *stateUseCase) ActiveProcessing() []ProcessingEntry {
	return s.registry.Snapshot()
}

// trackProcessing keeps the in-memory registry in sync with the status an
// order just reached.
func (s *stateUseCase) trackProcessing(order *orderDomain.Order, to orderDomain.Status) {
	if to == orderDomain.StatusProcessing {
		s.registry.Register(order.ID, orderDomain.PhaseValidation)
		return
	}
	s.registry.Remove(order.ID)
}

func (s *stateUseCase) recordTransition(
	ctx context.Context,
	orderID uuid.UUID,
	from, to orderDomain.Status,
	reason string,
) error {
	return s.transitionRepo.Create(ctx, &orderDomain.StateTransition{
		ID:         uuid.Must(uuid.NewV7()),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		CreatedAt:  s.nowFn().UTC(),
	})
}

func (s *stateUseCase) publishStatusEvent(
	ctx context.Context,
	order *orderDomain.Order,
	from, to orderDomain.Status,
	reason string,
) error {
	payload, err := json.Marshal(statusChangedEvent{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		OccurredAt: s.nowFn().UTC(),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal status event")
	}

	event := outboxDomain.NewOutboxEvent(
		orderAggregateType,
		order.ID,
		"order.status_changed",
		s.cfg.EventTopic,
		order.ID.String(),
		string(payload),
		outboxDomain.Headers{
			"from_status": string(from),
			"to_status":   string(to),
		},
	)
	return s.outbox.Publish(ctx, event)
}

func (s *stateUseCase) publishRefundEvent(
	ctx context.Context,
	order *orderDomain.Order,
	reason string,
) error {
	payload, err := json.Marshal(refundRequestedEvent{
		OrderID:    order.ID,
		SourceRef:  order.SourceRef,
		TargetRef:  order.TargetRef,
		Quantity:   order.Quantity,
		Reason:     reason,
		OccurredAt: s.nowFn().UTC(),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal refund event")
	}

	event := outboxDomain.NewOutboxEvent(
		orderAggregateType,
		order.ID,
		"order.refund_requested",
		s.cfg.RefundTopic,
		order.ID.String(),
		string(payload),
		outboxDomain.Headers{"reason": reason},
	)
	return s.outbox.Publish(ctx, event)
}
