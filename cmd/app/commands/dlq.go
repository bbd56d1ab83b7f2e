package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/dlq"
)

// RunDLQStats prints the dead letter queue contents grouped by failure
// classification. Supports both text and JSON output formats.
func RunDLQStats(
	ctx context.Context,
	dlqUseCase dlq.UseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	stats, err := dlqUseCase.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get dead letter stats: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"total":         stats.Total,
			"by_error_type": stats.ByErrorType,
		}
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Dead letter queue: %d order(s)\n", stats.Total)
	for errorType, count := range stats.ByErrorType {
		fmt.Fprintf(w, "  %s: %d\n", errorType, count)
	}
	return nil
}

// RunDLQRequeue schedules a dead-lettered order for another processing
// attempt and prints the resulting state.
func RunDLQRequeue(
	ctx context.Context,
	dlqUseCase dlq.UseCase,
	logger *slog.Logger,
	w io.Writer,
	id string,
	notes string,
	format string,
) error {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}

	logger.Info("requeueing dead-lettered order",
		slog.String("order_id", orderID.String()),
	)

	order, err := dlqUseCase.Requeue(ctx, orderID, notes)
	if err != nil {
		return fmt.Errorf("failed to requeue order: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"id":            order.ID,
			"status":        order.Status,
			"retry_count":   order.RetryCount,
			"next_retry_at": order.NextRetryAt,
		}
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Order %s requeued (status: %s, retry_count: %d)\n",
		order.ID, order.Status, order.RetryCount)
	return nil
}

// RunDLQPurge cancels a dead-lettered order so it never runs again.
func RunDLQPurge(
	ctx context.Context,
	dlqUseCase dlq.UseCase,
	logger *slog.Logger,
	w io.Writer,
	id string,
	reason string,
	format string,
) error {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}

	logger.Info("purging dead-lettered order",
		slog.String("order_id", orderID.String()),
	)

	order, err := dlqUseCase.Purge(ctx, orderID, reason)
	if err != nil {
		return fmt.Errorf("failed to purge order: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"id":     order.ID,
			"status": order.Status,
		}
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Order %s purged (status: %s)\n", order.ID, order.Status)
	return nil
}

// writeJSON writes the result as indented JSON.
func writeJSON(w io.Writer, result map[string]interface{}) error {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Fprintln(w, string(jsonBytes))
	return nil
}
