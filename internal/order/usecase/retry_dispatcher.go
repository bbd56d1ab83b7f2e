package usecase

import (
	"context"
	"errors"
	"log/slog"

	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// RetryDispatcher is the periodic sweep that re-runs orders whose retry
// time has arrived. Claiming and dispatching are separate steps so the
// database transaction never spans collaborator calls.
type RetryDispatcher struct {
	recovery RecoveryUseCase
	pipeline PipelineUseCase
	logger   *slog.Logger
}

// NewRetryDispatcher creates a new retry dispatch sweep.
func NewRetryDispatcher(
	recovery RecoveryUseCase,
	pipeline PipelineUseCase,
	logger *slog.Logger,
) *RetryDispatcher {
	return &RetryDispatcher{
		recovery: recovery,
		pipeline: pipeline,
		logger:   logger,
	}
}

// DispatchDueRetries claims a batch of due orders and resumes each one at
// the phase it previously failed in. A failure during dispatch goes back
// through the recovery engine as a retry processing error. Returns the
// number of orders dispatched successfully.
func (d *RetryDispatcher) DispatchDueRetries(ctx context.Context) (int, error) {
	orders, err := d.recovery.ClaimDueRetries(ctx)
	if err != nil {
		return 0, err
	}

	var dispatched int
	for _, order := range orders {
		phase := orderDomain.PhaseRetryExecution
		if order.FailedPhase != nil {
			phase = *order.FailedPhase
		}

		if err := d.pipeline.Resume(ctx, order.ID, phase); err != nil {
			d.recordDispatchFailure(ctx, order, err)
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

func (d *RetryDispatcher) recordDispatchFailure(ctx context.Context, order *orderDomain.Order, err error) {
	phase := orderDomain.PhaseRetryExecution
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		phase = phaseErr.Phase
	}

	if _, recordErr := d.recovery.RecordFailure(
		ctx,
		order.ID,
		orderDomain.ErrorTypeRetryProcessing,
		err.Error(),
		phase,
	); recordErr != nil && d.logger != nil {
		d.logger.ErrorContext(ctx, "failed to record dispatch failure",
			slog.String("order_id", order.ID.String()),
			slog.String("error", recordErr.Error()),
		)
	}
}
