package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/alert"
	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// manualRetryDelay is the grace before a manually retried order becomes
// visible to the dispatch sweep.
const manualRetryDelay = time.Minute

// RecoveryOutcome tells the caller what RecordFailure decided.
type RecoveryOutcome string

const (
	// OutcomeRetryScheduled means another automatic attempt was scheduled.
	OutcomeRetryScheduled RecoveryOutcome = "retry_scheduled"
	// OutcomeDeadLettered means the order was escalated to the dead letter
	// queue and automatic retries stopped.
	OutcomeDeadLettered RecoveryOutcome = "dead_lettered"
	// OutcomeIgnored means the failure arrived after the order reached a
	// terminal status and was discarded.
	OutcomeIgnored RecoveryOutcome = "ignored"
)

// RecoveryResult describes the decision RecordFailure took for a failure.
type RecoveryResult struct {
	Outcome     RecoveryOutcome
	RetryCount  int
	NextRetryAt *time.Time
}

// RecoveryStats aggregates the observable state of the recovery engine.
type RecoveryStats struct {
	ByStatus              map[orderDomain.Status]int64
	ScheduledRetries      int64
	DeadLetter            int64
	DeadLetterByErrorType map[orderDomain.ErrorType]int64
	FailedLast24h         int64
	FailedLast7d          int64
}

// RecoveryConfig carries the settings of the recovery engine.
type RecoveryConfig struct {
	Policy orderDomain.RetryPolicy
	// BatchSize bounds how many due orders a single sweep claims.
	BatchSize int
	// DeadLetterTopic is the destination for dead-letter notifications.
	DeadLetterTopic string
}

type deadLetteredEvent struct {
	OrderID    uuid.UUID             `json:"order_id"`
	ErrorType  orderDomain.ErrorType `json:"error_type"`
	Reason     string                `json:"reason"`
	Phase      orderDomain.Phase     `json:"phase"`
	RetryCount int                   `json:"retry_count"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// recoveryUseCase implements the RecoveryUseCase interface.
type recoveryUseCase struct {
	cfg            RecoveryConfig
	txManager      database.TxManager
	orderRepo      OrderRepository
	transitionRepo TransitionRepository
	outbox         EventOutbox
	registry       *ProcessingRegistry
	notifier       alert.Notifier
	logger         *slog.Logger
	nowFn          func() time.Time
}

// NewRecoveryUseCase creates a new error recovery use case. The registry is
// shared with the state use case so holding an order also clears its
// in-flight tracking entry.
func NewRecoveryUseCase(
	cfg RecoveryConfig,
	txManager database.TxManager,
	orderRepo OrderRepository,
	transitionRepo TransitionRepository,
	outbox EventOutbox,
	registry *ProcessingRegistry,
	notifier alert.Notifier,
	logger *slog.Logger,
) RecoveryUseCase {
	return &recoveryUseCase{
		cfg:            cfg,
		txManager:      txManager,
		orderRepo:      orderRepo,
		transitionRepo: transitionRepo,
		outbox:         outbox,
		registry:       registry,
		notifier:       notifier,
		logger:         logger,
		nowFn:          time.Now,
	}
}

// RecordFailure is the single entry point for processing failures. It
// increments the retry counter and either schedules the next attempt with
// exponential backoff or escalates the order to the dead letter queue,
// all within one transaction.
func (r *recoveryUseCase) RecordFailure(
	ctx context.Context,
	orderID uuid.UUID,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
) (*RecoveryResult, error) {
	now := r.nowFn().UTC()
	var result *RecoveryResult

	err := r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		order, err := r.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return err
		}

		// Failures racing a cancellation are discarded: the order already
		// reached its terminal status.
		if order.Status == orderDomain.StatusCancelled {
			result = &RecoveryResult{Outcome: OutcomeIgnored, RetryCount: order.RetryCount}
			return nil
		}

		order.RetryCount++
		order.LastErrorType = &errorType
		order.FailureReason = &reason
		order.FailedPhase = &phase

		retryable := errorType.Retryable() &&
			order.RetryCount < order.MaxRetries &&
			!order.IsManuallyFailed

		if retryable {
			next := now.Add(r.cfg.Policy.Delay(order.RetryCount))
			order.NextRetryAt = &next
			result = &RecoveryResult{
				Outcome:     OutcomeRetryScheduled,
				RetryCount:  order.RetryCount,
				NextRetryAt: &next,
			}
		} else {
			order.IsManuallyFailed = true
			order.NextRetryAt = nil
			result = &RecoveryResult{Outcome: OutcomeDeadLettered, RetryCount: order.RetryCount}
		}

		if order.Status != orderDomain.StatusHolding {
			from := order.Status
			order.Status = orderDomain.StatusHolding
			if err := r.recordTransition(txCtx, order.ID, from, reason); err != nil {
				return err
			}
		}

		if err := r.orderRepo.Update(txCtx, order); err != nil {
			return err
		}

		if result.Outcome == OutcomeDeadLettered {
			return r.publishDeadLetterEvent(txCtx, order, errorType, reason, phase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The order is no longer mid-pipeline: drop its tracking entry so the
	// stale sweep does not flag it later.
	if r.registry != nil {
		r.registry.Remove(orderID)
	}

	r.report(ctx, orderID, errorType, reason, phase, result)

	return result, nil
}

// ManualRetry puts a dead-lettered or stuck order back on the automatic
// retry path on behalf of an operator. With resetCount the retry budget
// starts over.
func (r *recoveryUseCase) ManualRetry(
	ctx context.Context,
	orderID uuid.UUID,
	notes string,
	resetCount bool,
) (*orderDomain.Order, error) {
	now := r.nowFn().UTC()
	var order *orderDomain.Order

	err := r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = r.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return err
		}

		if order.Status != orderDomain.StatusHolding && order.Status != orderDomain.StatusProcessing {
			return apperrors.Wrapf(orderDomain.ErrNotRetryable, "status %s", order.Status)
		}

		// The dispatch sweep only claims holding orders, so a stuck
		// processing order is moved to holding before being scheduled.
		if order.Status == orderDomain.StatusProcessing {
			from := order.Status
			order.Status = orderDomain.StatusHolding
			if err := r.recordTransition(txCtx, order.ID, from, "manual retry requested"); err != nil {
				return err
			}
		}

		if resetCount {
			order.RetryCount = 0
		}
		order.IsManuallyFailed = false
		if notes != "" {
			order.OperatorNotes = &notes
		}
		next := now.Add(manualRetryDelay)
		order.NextRetryAt = &next

		return r.orderRepo.Update(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	if r.registry != nil {
		r.registry.Remove(orderID)
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "manual retry scheduled",
			slog.String("order_id", orderID.String()),
			slog.Bool("reset_count", resetCount),
			slog.Time("next_retry_at", *order.NextRetryAt),
		)
	}

	return order, nil
}

// ClaimDueRetries atomically takes ownership of a batch of orders whose
// retry time has arrived, clearing their schedule so no other sweep picks
// them up again.
func (r *recoveryUseCase) ClaimDueRetries(ctx context.Context) ([]*orderDomain.Order, error) {
	now := r.nowFn().UTC()
	var claimed []*orderDomain.Order

	err := r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		orders, err := r.orderRepo.ListDueForRetry(txCtx, now, r.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, order := range orders {
			order.NextRetryAt = nil
			lastRetry := now
			order.LastRetryAt = &lastRetry
			if err := r.orderRepo.Update(txCtx, order); err != nil {
				return err
			}
		}

		claimed = orders
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// Stats aggregates order counts, scheduled retries and the dead letter
// queue breakdown.
func (r *recoveryUseCase) Stats(ctx context.Context) (*RecoveryStats, error) {
	byStatus, err := r.orderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	scheduled, err := r.orderRepo.CountScheduledRetries(ctx)
	if err != nil {
		return nil, err
	}

	deadLetter, err := r.orderRepo.CountDeadLetter(ctx, nil)
	if err != nil {
		return nil, err
	}

	byErrorType, err := r.orderRepo.CountDeadLetterByErrorType(ctx)
	if err != nil {
		return nil, err
	}

	now := r.nowFn().UTC()

	failed24h, err := r.orderRepo.CountFailedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	failed7d, err := r.orderRepo.CountFailedSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	return &RecoveryStats{
		ByStatus:              byStatus,
		ScheduledRetries:      scheduled,
		DeadLetter:            deadLetter,
		DeadLetterByErrorType: byErrorType,
		FailedLast24h:         failed24h,
		FailedLast7d:          failed7d,
	}, nil
}

func (r *recoveryUseCase) recordTransition(
	ctx context.Context,
	orderID uuid.UUID,
	from orderDomain.Status,
	reason string,
) error {
	return r.transitionRepo.Create(ctx, &orderDomain.StateTransition{
		ID:         uuid.Must(uuid.NewV7()),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   orderDomain.StatusHolding,
		Reason:     reason,
		CreatedAt:  r.nowFn().UTC(),
	})
}

func (r *recoveryUseCase) publishDeadLetterEvent(
	ctx context.Context,
	order *orderDomain.Order,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
) error {
	payload, err := json.Marshal(deadLetteredEvent{
		OrderID:    order.ID,
		ErrorType:  errorType,
		Reason:     reason,
		Phase:      phase,
		RetryCount: order.RetryCount,
		OccurredAt: r.nowFn().UTC(),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal dead letter event")
	}

	event := outboxDomain.NewOutboxEvent(
		orderAggregateType,
		order.ID,
		"order.dead_lettered",
		r.cfg.DeadLetterTopic,
		order.ID.String(),
		string(payload),
		outboxDomain.Headers{
			"error_type":   string(errorType),
			"failed_phase": string(phase),
		},
	)
	return r.outbox.Publish(ctx, event)
}

func (r *recoveryUseCase) report(
	ctx context.Context,
	orderID uuid.UUID,
	errorType orderDomain.ErrorType,
	reason string,
	phase orderDomain.Phase,
	result *RecoveryResult,
) {
	switch result.Outcome {
	case OutcomeRetryScheduled:
		if r.logger != nil {
			r.logger.WarnContext(ctx, "retry scheduled",
				slog.String("order_id", orderID.String()),
				slog.String("error_type", string(errorType)),
				slog.String("phase", string(phase)),
				slog.Int("retry_count", result.RetryCount),
				slog.Time("next_retry_at", *result.NextRetryAt),
			)
		}
	case OutcomeDeadLettered:
		if r.notifier != nil {
			r.notifier.Alert(ctx,
				"order dead-lettered",
				"order "+orderID.String()+" escalated after "+reason,
				alert.SeverityCritical,
			)
		}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "order dead-lettered",
				slog.String("order_id", orderID.String()),
				slog.String("error_type", string(errorType)),
				slog.String("phase", string(phase)),
				slog.Int("retry_count", result.RetryCount),
			)
		}
	case OutcomeIgnored:
		if r.logger != nil {
			r.logger.InfoContext(ctx, "failure ignored for cancelled order",
				slog.String("order_id", orderID.String()),
			)
		}
	}
}
