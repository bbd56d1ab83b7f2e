package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// pipelinePhases is the execution order of the processing pipeline.
var pipelinePhases = []orderDomain.Phase{
	orderDomain.PhaseValidation,
	orderDomain.PhaseVideoAnalysis,
	orderDomain.PhaseClipCreation,
	orderDomain.PhaseCampaignAssignment,
	orderDomain.PhaseActivation,
}

// PhaseError reports which pipeline phase failed and how the failure is
// classified. Callers record it through the recovery engine.
type PhaseError struct {
	Phase orderDomain.Phase
	Type  orderDomain.ErrorType
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed (%s): %v", e.Phase, e.Type, e.Err)
}

// Unwrap exposes the underlying failure for errors.Is checks.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// ClassifyError maps an arbitrary pipeline failure onto the recovery
// engine's error taxonomy. Unknown errors count as transient so a flaky
// collaborator gets the benefit of the retry budget.
func ClassifyError(err error) orderDomain.ErrorType {
	switch {
	case errors.Is(err, orderDomain.ErrConcurrentModification):
		return orderDomain.ErrorTypeConcurrency
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return orderDomain.ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded), apperrors.Is(err, apperrors.ErrUnavailable):
		return orderDomain.ErrorTypeTransient
	default:
		return orderDomain.ErrorTypeTransient
	}
}

// PipelineConfig carries the settings of the processing pipeline.
type PipelineConfig struct {
	// CollaboratorTimeout bounds each external call.
	CollaboratorTimeout time.Duration
}

// pipelineUseCase implements the PipelineUseCase interface.
type pipelineUseCase struct {
	cfg       PipelineConfig
	state     StateUseCase
	video     VideoProcessor
	campaigns CampaignAssigner
	registry  *ProcessingRegistry
	logger    *slog.Logger
}

// NewPipelineUseCase creates a new processing pipeline use case.
func NewPipelineUseCase(
	cfg PipelineConfig,
	state StateUseCase,
	video VideoProcessor,
	campaigns CampaignAssigner,
	registry *ProcessingRegistry,
	logger *slog.Logger,
) PipelineUseCase {
	return &pipelineUseCase{
		cfg:       cfg,
		state:     state,
		video:     video,
		campaigns: campaigns,
		registry:  registry,
		logger:    logger,
	}
}

// Process runs the full pipeline for an order from the first phase.
func (p *pipelineUseCase) Process(ctx context.Context, orderID uuid.UUID) error {
	return p.run(ctx, orderID, orderDomain.PhaseValidation, "processing started")
}

// Resume continues the pipeline of a previously failed order. Failures in
// the early phases restart the pipeline from the top; later phases resume
// in place.
func (p *pipelineUseCase) Resume(ctx context.Context, orderID uuid.UUID, phase orderDomain.Phase) error {
	if phase.RestartsFromTop() || !phaseInPipeline(phase) {
		phase = orderDomain.PhaseValidation
	}
	return p.run(ctx, orderID, phase, "retry dispatched")
}

func (p *pipelineUseCase) run(
	ctx context.Context,
	orderID uuid.UUID,
	startPhase orderDomain.Phase,
	reason string,
) error {
	order, err := p.state.Get(ctx, orderID)
	if err != nil {
		return err
	}

	// A cancellation that arrived before the worker picked the order up
	// wins; there is nothing left to do.
	if order.Status == orderDomain.StatusCancelled {
		if p.logger != nil {
			p.logger.InfoContext(ctx, "skipping cancelled order",
				slog.String("order_id", orderID.String()),
			)
		}
		return nil
	}

	if order.Status != orderDomain.StatusProcessing {
		order, err = p.state.Transition(ctx, orderID, orderDomain.StatusProcessing, reason)
		if err != nil {
			return err
		}
	}

	started := false
	for _, phase := range pipelinePhases {
		if !started {
			if phase != startPhase {
				continue
			}
			started = true
		}

		p.registry.Touch(orderID, phase, "")

		if err := p.runPhase(ctx, order, phase); err != nil {
			return &PhaseError{Phase: phase, Type: ClassifyError(err), Err: err}
		}
	}

	return nil
}

func (p *pipelineUseCase) runPhase(
	ctx context.Context,
	order *orderDomain.Order,
	phase orderDomain.Phase,
) error {
	switch phase {
	case orderDomain.PhaseValidation:
		return p.validate(order)
	case orderDomain.PhaseVideoAnalysis:
		return p.withTimeout(ctx, func(ctx context.Context) error {
			return p.video.Analyze(ctx, order)
		})
	case orderDomain.PhaseClipCreation:
		return p.withTimeout(ctx, func(ctx context.Context) error {
			return p.video.CreateClip(ctx, order)
		})
	case orderDomain.PhaseCampaignAssignment:
		return p.withTimeout(ctx, func(ctx context.Context) error {
			return p.campaigns.Assign(ctx, order)
		})
	case orderDomain.PhaseActivation:
		_, err := p.state.Transition(ctx, order.ID, orderDomain.StatusActive, "pipeline complete")
		return err
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown pipeline phase %s", phase)
	}
}

// validate re-checks the order payload before spending collaborator calls
// on it. Orders created through the API already passed these checks, but
// messages may carry orders from other producers.
func (p *pipelineUseCase) validate(order *orderDomain.Order) error {
	if strings.TrimSpace(order.SourceRef) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "source ref is blank")
	}
	if strings.TrimSpace(order.TargetRef) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "target ref is blank")
	}
	if order.Quantity < 1 {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "quantity %d is not positive", order.Quantity)
	}
	return nil
}

func (p *pipelineUseCase) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.cfg.CollaboratorTimeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
	defer cancel()
	return fn(ctx)
}

func phaseInPipeline(phase orderDomain.Phase) bool {
	for _, p := range pipelinePhases {
		if p == phase {
			return true
		}
	}
	return false
}
