package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUsecase "github.com/allisson/orders/internal/outbox/usecase"
)

// RunCleanOutboxEvents deletes processed outbox events older than the
// configured retention window. Intended for cron use alongside the
// scheduler-driven sweep.
func RunCleanOutboxEvents(
	ctx context.Context,
	outboxUseCase outboxUsecase.UseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	logger.Info("cleaning processed outbox events")

	count, err := outboxUseCase.CleanupProcessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	if format == "json" {
		return writeJSON(w, map[string]interface{}{"count": count})
	}

	fmt.Fprintf(w, "Successfully deleted %d processed outbox event(s)\n", count)
	return nil
}
