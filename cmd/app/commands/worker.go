package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/orders/internal/app"
	"github.com/allisson/orders/internal/config"
)

// RunWorker starts the background worker: the order processing and dead
// letter consumers plus the maintenance scheduler (outbox delivery,
// due-retry dispatch, stale cleanup, retention sweeps). Blocks until
// SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Connect to the broker and wire the consumers
	conn := container.AMQPConnection()
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	if err := container.SetupConsumers(); err != nil {
		return fmt.Errorf("failed to setup consumers: %w", err)
	}

	sched, err := container.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.QueueManager().StartAllConsumers(gctx)
		sched.Start(gctx)

		<-gctx.Done()
		logger.Info("shutdown signal received")

		// Wait for in-flight scheduler sweeps to finish; consumers are
		// stopped by the container shutdown.
		sched.Wait()
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
