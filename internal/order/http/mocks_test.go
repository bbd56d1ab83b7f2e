package http

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/dlq"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// MockStateUseCase is a mock implementation of orderUsecase.StateUseCase
type MockStateUseCase struct {
	mock.Mock
}

func (m *MockStateUseCase) Create(ctx context.Context, input *orderUsecase.CreateOrderInput) (*orderDomain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockStateUseCase) Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockStateUseCase) History(ctx context.Context, id uuid.UUID) ([]*orderDomain.StateTransition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.StateTransition), args.Error(1)
}

func (m *MockStateUseCase) Transition(
	ctx context.Context,
	id uuid.UUID,
	to orderDomain.Status,
	reason string,
) (*orderDomain.Order, error) {
	args := m.Called(ctx, id, to, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockStateUseCase) CleanupStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStateUseCase) ActiveProcessing() []orderUsecase.ProcessingEntry {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]orderUsecase.ProcessingEntry)
}

// MockRecoveryUseCase is a mock implementation of orderUsecase.RecoveryUseCase
type MockRecoveryUseCase struct {
	mock.Mock
}

func (m *MockRecoveryUseCase) RecordFailure(
	ctx context.Context,
	orderID uuid.UUID,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
) (*orderUsecase.RecoveryResult, error) {
	args := m.Called(ctx, orderID, errorType, reason, phase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderUsecase.RecoveryResult), args.Error(1)
}

func (m *MockRecoveryUseCase) ManualRetry(
	ctx context.Context,
	orderID uuid.UUID,
	notes string,
	resetCount bool,
) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, notes, resetCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockRecoveryUseCase) ClaimDueRetries(ctx context.Context) ([]*orderDomain.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.Order), args.Error(1)
}

func (m *MockRecoveryUseCase) Stats(ctx context.Context) (*orderUsecase.RecoveryStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderUsecase.RecoveryStats), args.Error(1)
}

// MockDLQUseCase is a mock implementation of dlq.UseCase
type MockDLQUseCase struct {
	mock.Mock
}

func (m *MockDLQUseCase) List(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
	offset, limit int,
) (*dlq.Page, error) {
	args := m.Called(ctx, errorType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dlq.Page), args.Error(1)
}

func (m *MockDLQUseCase) Requeue(ctx context.Context, orderID uuid.UUID, notes string) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockDLQUseCase) Purge(ctx context.Context, orderID uuid.UUID, reason string) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockDLQUseCase) Stats(ctx context.Context) (*dlq.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dlq.Stats), args.Error(1)
}

func (m *MockDLQUseCase) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockOutboxUseCase is a mock implementation of outboxUsecase.UseCase
type MockOutboxUseCase struct {
	mock.Mock
}

func (m *MockOutboxUseCase) Publish(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxUseCase) ProcessEvents(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOutboxUseCase) CleanupProcessed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxUseCase) Stats(ctx context.Context) (*outboxDomain.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Stats), args.Error(1)
}
