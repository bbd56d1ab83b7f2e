package usecase

import (
	"context"
	"log/slog"

	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// DefaultVideoProcessor is a stand-in collaborator that accepts every
// order. Deployments integrate a real processor by providing their own
// VideoProcessor implementation.
type DefaultVideoProcessor struct {
	logger *slog.Logger
}

// NewDefaultVideoProcessor creates a new DefaultVideoProcessor.
func NewDefaultVideoProcessor(logger *slog.Logger) *DefaultVideoProcessor {
	return &DefaultVideoProcessor{logger: logger}
}

// Analyze accepts the source material.
func (p *DefaultVideoProcessor) Analyze(ctx context.Context, order *orderDomain.Order) error {
	if p.logger != nil {
		p.logger.Info("analyzed source material",
			slog.String("order_id", order.ID.String()),
			slog.String("source_ref", order.SourceRef),
		)
	}
	return nil
}

// CreateClip produces the clip for the order.
func (p *DefaultVideoProcessor) CreateClip(ctx context.Context, order *orderDomain.Order) error {
	if p.logger != nil {
		p.logger.Info("created clip",
			slog.String("order_id", order.ID.String()),
			slog.String("source_ref", order.SourceRef),
		)
	}
	return nil
}

// DefaultCampaignAssigner is a stand-in collaborator that assigns every
// order to its target campaign.
type DefaultCampaignAssigner struct {
	logger *slog.Logger
}

// NewDefaultCampaignAssigner creates a new DefaultCampaignAssigner.
func NewDefaultCampaignAssigner(logger *slog.Logger) *DefaultCampaignAssigner {
	return &DefaultCampaignAssigner{logger: logger}
}

// Assign attaches the produced material to the target campaign.
func (a *DefaultCampaignAssigner) Assign(ctx context.Context, order *orderDomain.Order) error {
	if a.logger != nil {
		a.logger.Info("assigned order to campaign",
			slog.String("order_id", order.ID.String()),
			slog.String("target_ref", order.TargetRef),
			slog.Int("quantity", order.Quantity),
		)
	}
	return nil
}
