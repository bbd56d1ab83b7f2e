package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/metrics"
	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// stateUseCaseWithMetrics decorates StateUseCase with metrics instrumentation.
type stateUseCaseWithMetrics struct {
	next         StateUseCase
	metrics      metrics.BusinessMetrics
	orderMetrics metrics.OrderMetrics
}

// NewStateUseCaseWithMetrics wraps a StateUseCase with metrics recording.
func NewStateUseCaseWithMetrics(
	useCase StateUseCase,
	m metrics.BusinessMetrics,
	om metrics.OrderMetrics,
) StateUseCase {
	return &stateUseCaseWithMetrics{
		next:         useCase,
		metrics:      m,
		orderMetrics: om,
	}
}

// Create records metrics for order creation.
func (s *stateUseCaseWithMetrics) Create(ctx context.Context, input *CreateOrderInput) (*orderDomain.Order, error) {
	start := time.Now()
	order, err := s.next.Create(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "order", "create", status)
	s.metrics.RecordDuration(ctx, "order", "create", time.Since(start), status)

	return order, err
}

// Get delegates without instrumentation; reads are covered by the HTTP
// middleware metrics.
func (s *stateUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	return s.next.Get(ctx, id)
}

// History delegates without instrumentation.
func (s *stateUseCaseWithMetrics) History(ctx context.Context, id uuid.UUID) ([]*orderDomain.StateTransition, error) {
	return s.next.History(ctx, id)
}

// Transition records metrics for state transitions.
func (s *stateUseCaseWithMetrics) Transition(
	ctx context.Context,
	id uuid.UUID,
	to orderDomain.Status,
	reason string,
) (*orderDomain.Order, error) {
	start := time.Now()
	order, err := s.next.Transition(ctx, id, to, reason)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "order", "transition", status)
	s.metrics.RecordDuration(ctx, "order", "transition", time.Since(start), status)
	if err == nil {
		s.orderMetrics.RecordTransition(ctx, string(to))
	}

	return order, err
}

// CleanupStale records metrics for the stale processing sweep.
func (s *stateUseCaseWithMetrics) CleanupStale(ctx context.Context) (int, error) {
	start := time.Now()
	moved, err := s.next.CleanupStale(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "order", "cleanup_stale", status)
	s.metrics.RecordDuration(ctx, "order", "cleanup_stale", time.Since(start), status)

	return moved, err
}

// ActiveProcessing delegates without instrumentation.
func (s *stateUseCaseWithMetrics) ActiveProcessing() []ProcessingEntry {
	return s.next.ActiveProcessing()
}

// recoveryUseCaseWithMetrics decorates RecoveryUseCase with metrics instrumentation.
type recoveryUseCaseWithMetrics struct {
	next         RecoveryUseCase
	metrics      metrics.BusinessMetrics
	orderMetrics metrics.OrderMetrics
}

// NewRecoveryUseCaseWithMetrics wraps a RecoveryUseCase with metrics recording.
func NewRecoveryUseCaseWithMetrics(
	useCase RecoveryUseCase,
	m metrics.BusinessMetrics,
	om metrics.OrderMetrics,
) RecoveryUseCase {
	return &recoveryUseCaseWithMetrics{
		next:         useCase,
		metrics:      m,
		orderMetrics: om,
	}
}

// RecordFailure records metrics for failure recording, including the
// recovery outcome counters.
func (r *recoveryUseCaseWithMetrics) RecordFailure(
	ctx context.Context,
	orderID uuid.UUID,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
) (*RecoveryResult, error) {
	start := time.Now()
	result, err := r.next.RecordFailure(ctx, orderID, errorType, reason, phase)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "order", "record_failure", status)
	r.metrics.RecordDuration(ctx, "order", "record_failure", time.Since(start), status)

	if err == nil {
		r.orderMetrics.RecordFailure(ctx, string(errorType), string(phase))
		switch result.Outcome {
		case OutcomeRetryScheduled:
			r.orderMetrics.RecordRetryScheduled(ctx)
		case OutcomeDeadLettered:
			r.orderMetrics.RecordDeadLettered(ctx, string(errorType))
		}
	}

	return result, err
}

// ManualRetry records metrics for operator retries.
func (r *recoveryUseCaseWithMetrics) ManualRetry(
	ctx context.Context,
	orderID uuid.UUID,
	notes string,
	resetCount bool,
) (*orderDomain.Order, error) {
	start := time.Now()
	order, err := r.next.ManualRetry(ctx, orderID, notes, resetCount)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "order", "manual_retry", status)
	r.metrics.RecordDuration(ctx, "order", "manual_retry", time.Since(start), status)

	return order, err
}

// ClaimDueRetries records metrics for the due-retry claim step.
func (r *recoveryUseCaseWithMetrics) ClaimDueRetries(ctx context.Context) ([]*orderDomain.Order, error) {
	start := time.Now()
	orders, err := r.next.ClaimDueRetries(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "order", "claim_due_retries", status)
	r.metrics.RecordDuration(ctx, "order", "claim_due_retries", time.Since(start), status)

	return orders, err
}

// Stats delegates without instrumentation.
func (r *recoveryUseCaseWithMetrics) Stats(ctx context.Context) (*RecoveryStats, error) {
	return r.next.Stats(ctx)
}
