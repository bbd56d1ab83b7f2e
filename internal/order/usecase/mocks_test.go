package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/alert"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	// Execute the function to test the logic inside
	return fn(ctx)
}

// MockOrderRepository is a mock implementation of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *orderDomain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *orderDomain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) ListDueForRetry(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
	offset, limit int,
) ([]*orderDomain.Order, error) {
	args := m.Called(ctx, errorType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.Order), args.Error(1)
}

func (m *MockOrderRepository) CountDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
) (int64, error) {
	args := m.Called(ctx, errorType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountDeadLetterByErrorType(
	ctx context.Context,
) (map[orderDomain.ErrorType]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[orderDomain.ErrorType]int64), args.Error(1)
}

func (m *MockOrderRepository) ListDeadLetterBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.Order), args.Error(1)
}

func (m *MockOrderRepository) CountByStatus(
	ctx context.Context,
) (map[orderDomain.Status]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[orderDomain.Status]int64), args.Error(1)
}

func (m *MockOrderRepository) CountScheduledRetries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransitionRepository is a mock implementation of TransitionRepository
type MockTransitionRepository struct {
	mock.Mock
}

func (m *MockTransitionRepository) Create(ctx context.Context, transition *orderDomain.StateTransition) error {
	args := m.Called(ctx, transition)
	return args.Error(0)
}

func (m *MockTransitionRepository) ListByOrder(
	ctx context.Context,
	orderID uuid.UUID,
) ([]*orderDomain.StateTransition, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.StateTransition), args.Error(1)
}

// MockEventOutbox is a mock implementation of EventOutbox
type MockEventOutbox struct {
	mock.Mock
}

func (m *MockEventOutbox) Publish(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockVideoProcessor is a mock implementation of VideoProcessor
type MockVideoProcessor struct {
	mock.Mock
}

func (m *MockVideoProcessor) Analyze(ctx context.Context, order *orderDomain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockVideoProcessor) CreateClip(ctx context.Context, order *orderDomain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockCampaignAssigner is a mock implementation of CampaignAssigner
type MockCampaignAssigner struct {
	mock.Mock
}

func (m *MockCampaignAssigner) Assign(ctx context.Context, order *orderDomain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockNotifier is a mock implementation of alert.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Alert(ctx context.Context, title, message string, severity alert.Severity) {
	m.Called(ctx, title, message, severity)
}

// MockStateUseCase is a mock implementation of StateUseCase
type MockStateUseCase struct {
	mock.Mock
}

func (m *MockStateUseCase) Create(ctx context.Context, input *CreateOrderInput) (*orderDomain.Order, error) {
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

func (m *MockStateUseCase) ActiveProcessing() []ProcessingEntry {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]ProcessingEntry)
}

// MockRecoveryUseCase is a mock implementation of RecoveryUseCase
type MockRecoveryUseCase struct {
	mock.Mock
}

func (m *MockRecoveryUseCase) RecordFailure(
	ctx context.Context,
	orderID uuid.UUID,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
) (*RecoveryResult, error) {
	args := m.Called(ctx, orderID, errorType, reason, phase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecoveryResult), args.Error(1)
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

func (m *MockRecoveryUseCase) Stats(ctx context.Context) (*RecoveryStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecoveryStats), args.Error(1)
}

// MockPipelineUseCase is a mock implementation of PipelineUseCase
type MockPipelineUseCase struct {
	mock.Mock
}

func (m *MockPipelineUseCase) Process(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockPipelineUseCase) Resume(
	ctx context.Context,
	orderID uuid.UUID,
	phase orderDomain.Phase,
) error {
	args := m.Called(ctx, orderID, phase)
	return args.Error(0)
}
