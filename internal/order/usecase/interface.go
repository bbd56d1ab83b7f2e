// Package usecase defines the interfaces and implementations for order
// business logic. Use cases orchestrate operations between repositories,
// the transactional outbox and external collaborators.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	orderDomain "github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// OrderRepository defines the data access interface for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *orderDomain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error)
	Update(ctx context.Context, order *orderDomain.Order) error
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]*orderDomain.Order, error)
	ListDeadLetter(ctx context.Context, errorType *orderDomain.ErrorType, offset, limit int) ([]*orderDomain.Order, error)
	CountDeadLetter(ctx context.Context, errorType *orderDomain.ErrorType) (int64, error)
	CountDeadLetterByErrorType(ctx context.Context) (map[orderDomain.ErrorType]int64, error)
	ListDeadLetterBefore(ctx context.Context, cutoff time.Time, limit int) ([]*orderDomain.Order, error)
	CountByStatus(ctx context.Context) (map[orderDomain.Status]int64, error)
	CountScheduledRetries(ctx context.Context) (int64, error)
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
}

// TransitionRepository defines the data access interface for the
// append-only transition audit log.
type TransitionRepository interface {
	Create(ctx context.Context, transition *orderDomain.StateTransition) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*orderDomain.StateTransition, error)
}

// EventOutbox stages integration events in the caller's transaction so
// they commit or roll back together with the state change that caused
// them.
type EventOutbox interface {
	Publish(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// VideoProcessor is the collaborator that analyzes source material and
// produces clips for an order.
type VideoProcessor interface {
	Analyze(ctx context.Context, order *orderDomain.Order) error
	CreateClip(ctx context.Context, order *orderDomain.Order) error
}

// CampaignAssigner is the collaborator that attaches the produced material
// to the target campaign.
type CampaignAssigner interface {
	Assign(ctx context.Context, order *orderDomain.Order) error
}

// StateUseCase defines the business operations that move orders through
// the lifecycle state machine.
type StateUseCase interface {
	Create(ctx context.Context, input *CreateOrderInput) (*orderDomain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error)
	History(ctx context.Context, id uuid.UUID) ([]*orderDomain.StateTransition, error)
	Transition(ctx context.Context, id uuid.UUID, to orderDomain.Status, reason string) (*orderDomain.Order, error)
	CleanupStale(ctx context.Context) (int, error)
	ActiveProcessing() []ProcessingEntry
}

// RecoveryUseCase defines the error recovery engine: failure recording
// with backoff scheduling, operator-driven retries and the claim step of
// the due-retry sweep.
type RecoveryUseCase interface {
	RecordFailure(ctx context.Context, orderID uuid.UUID, errorType orderDomain.ErrorType, reason string, phase orderDomain.Phase) (*RecoveryResult, error)
	ManualRetry(ctx context.Context, orderID uuid.UUID, notes string, resetCount bool) (*orderDomain.Order, error)
	ClaimDueRetries(ctx context.Context) ([]*orderDomain.Order, error)
	Stats(ctx context.Context) (*RecoveryStats, error)
}

// PipelineUseCase runs the processing pipeline for an order, either from
// the top or resuming at the phase a previous attempt failed in.
type PipelineUseCase interface {
	Process(ctx context.Context, orderID uuid.UUID) error
	Resume(ctx context.Context, orderID uuid.UUID, phase orderDomain.Phase) error
}
