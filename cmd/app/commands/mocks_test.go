package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/dlq"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

type mockDLQUseCase struct {
	mock.Mock
}

func (m *mockDLQUseCase) List(ctx context.Context, errorType *orderDomain.ErrorType, offset, limit int) (*dlq.Page, error) {
	args := m.Called(ctx, errorType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dlq.Page), args.Error(1)
}

func (m *mockDLQUseCase) Requeue(ctx context.Context, orderID uuid.UUID, notes string) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *mockDLQUseCase) Purge(ctx context.Context, orderID uuid.UUID, reason string) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *mockDLQUseCase) Stats(ctx context.Context) (*dlq.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dlq.Stats), args.Error(1)
}

func (m *mockDLQUseCase) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockOutboxUseCase struct {
	mock.Mock
}

func (m *mockOutboxUseCase) Publish(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockOutboxUseCase) ProcessEvents(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockOutboxUseCase) CleanupProcessed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxUseCase) Stats(ctx context.Context) (*outboxDomain.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Stats), args.Error(1)
}

type mockRetryDispatcher struct {
	mock.Mock
}

func (m *mockRetryDispatcher) DispatchDueRetries(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
