package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
)

// Config carries the dead letter queue settings.
type Config struct {
	// RetentionDays is how long a dead-lettered order may sit before the
	// cleanup sweep cancels it.
	RetentionDays int
	// CleanupBatchSize bounds a single retention sweep.
	CleanupBatchSize int
}

// Page is one page of the dead letter listing.
type Page struct {
	Orders []*orderDomain.Order
	Total  int64
	Offset int
	Limit  int
}

// Stats aggregates the dead letter queue contents.
type Stats struct {
	Total       int64
	ByErrorType map[orderDomain.ErrorType]int64
}

// UseCase is the operator surface of the dead letter queue.
type UseCase interface {
	List(ctx context.Context, errorType *orderDomain.ErrorType, offset, limit int) (*Page, error)
	Requeue(ctx context.Context, orderID uuid.UUID, notes string) (*orderDomain.Order, error)
	Purge(ctx context.Context, orderID uuid.UUID, reason string) (*orderDomain.Order, error)
	Stats(ctx context.Context) (*Stats, error)
	CleanupExpired(ctx context.Context) (int, error)
}

// useCase implements the UseCase interface on top of the order state
// machine and recovery engine.
type useCase struct {
	cfg       Config
	orderRepo orderUsecase.OrderRepository
	state     orderUsecase.StateUseCase
	recovery  orderUsecase.RecoveryUseCase
	logger    *slog.Logger
	nowFn     func() time.Time
}

// NewUseCase creates the dead letter queue use case.
func NewUseCase(
	cfg Config,
	orderRepo orderUsecase.OrderRepository,
	state orderUsecase.StateUseCase,
	recovery orderUsecase.RecoveryUseCase,
	logger *slog.Logger,
) UseCase {
	return &useCase{
		cfg:       cfg,
		orderRepo: orderRepo,
		state:     state,
		recovery:  recovery,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// List returns a page of dead-lettered orders, optionally narrowed to one
// failure classification.
func (u *useCase) List(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
	offset, limit int,
) (*Page, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := u.orderRepo.ListDeadLetter(ctx, errorType, offset, limit)
	if err != nil {
		return nil, err
	}

	total, err := u.orderRepo.CountDeadLetter(ctx, errorType)
	if err != nil {
		return nil, err
	}

	return &Page{Orders: orders, Total: total, Offset: offset, Limit: limit}, nil
}

// Requeue puts a dead-lettered order back on the automatic retry path
// with a fresh retry budget.
func (u *useCase) Requeue(ctx context.Context, orderID uuid.UUID, notes string) (*orderDomain.Order, error) {
	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.InDeadLetter() {
		return nil, apperrors.Wrapf(orderDomain.ErrNotInDeadLetter, "order %s", orderID)
	}

	requeued, err := u.recovery.ManualRetry(ctx, orderID, notes, true)
	if err != nil {
		return nil, err
	}

	if u.logger != nil {
		u.logger.InfoContext(ctx, "dead letter order requeued",
			slog.String("order_id", orderID.String()),
		)
	}

	return requeued, nil
}

// Purge cancels a dead-lettered order for good. Cancellation emits the
// refund event through the state machine.
func (u *useCase) Purge(ctx context.Context, orderID uuid.UUID, reason string) (*orderDomain.Order, error) {
	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.InDeadLetter() {
		return nil, apperrors.Wrapf(orderDomain.ErrNotInDeadLetter, "order %s", orderID)
	}

	if reason == "" {
		reason = "purged from dead letter queue"
	}

	purged, err := u.state.Transition(ctx, orderID, orderDomain.StatusCancelled, reason)
	if err != nil {
		return nil, err
	}

	if u.logger != nil {
		u.logger.InfoContext(ctx, "dead letter order purged",
			slog.String("order_id", orderID.String()),
			slog.String("reason", reason),
		)
	}

	return purged, nil
}

// Stats returns the dead letter totals and the per-classification
// breakdown.
func (u *useCase) Stats(ctx context.Context) (*Stats, error) {
	total, err := u.orderRepo.CountDeadLetter(ctx, nil)
	if err != nil {
		return nil, err
	}

	byErrorType, err := u.orderRepo.CountDeadLetterByErrorType(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{Total: total, ByErrorType: byErrorType}, nil
}

// CleanupExpired cancels dead-lettered orders past the retention window.
// Returns the number of orders cancelled.
func (u *useCase) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := u.nowFn().UTC().AddDate(0, 0, -u.cfg.RetentionDays)

	expired, err := u.orderRepo.ListDeadLetterBefore(ctx, cutoff, u.cfg.CleanupBatchSize)
	if err != nil {
		return 0, err
	}

	var cancelled int
	for _, order := range expired {
		if _, err := u.state.Transition(ctx, order.ID, orderDomain.StatusCancelled, "dead letter retention expired"); err != nil {
			return cancelled, err
		}
		cancelled++
	}

	if cancelled > 0 && u.logger != nil {
		u.logger.InfoContext(ctx, "expired dead letter orders cancelled",
			slog.Int("count", cancelled),
		)
	}

	return cancelled, nil
}
