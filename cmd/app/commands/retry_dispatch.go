package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// RetryDispatcher is the part of the dispatch sweep the command uses.
type RetryDispatcher interface {
	DispatchDueRetries(ctx context.Context) (int, error)
}

// RunRetryDispatch runs one due-retry sweep and reports how many orders
// were dispatched. Intended for cron use when the worker's periodic sweep
// is disabled.
func RunRetryDispatch(
	ctx context.Context,
	dispatcher RetryDispatcher,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	logger.Info("dispatching due retries")

	dispatched, err := dispatcher.DispatchDueRetries(ctx)
	if err != nil {
		return fmt.Errorf("failed to dispatch due retries: %w", err)
	}

	if format == "json" {
		return writeJSON(w, map[string]interface{}{"dispatched": dispatched})
	}

	fmt.Fprintf(w, "Dispatched %d due order(s)\n", dispatched)
	return nil
}
