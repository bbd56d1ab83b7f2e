// Package scheduler runs the periodic maintenance sweeps: outbox
// delivery, due-retry dispatch, stale processing cleanup and retention
// cleanups. Each task runs on its own ticker so a slow sweep never
// starves the others.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a named periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a set of tasks until its context is cancelled.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a task. Tasks with no interval or no run function are
// ignored.
func (s *Scheduler) Add(task Task) {
	if task.Interval <= 0 || task.Run == nil {
		return
	}
	s.tasks = append(s.tasks, task)
}

// Start launches one goroutine per task. Each task fires on its interval
// until the context is cancelled. Errors are logged, not fatal: the next
// tick tries again.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
}

// Wait blocks until every task loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	if s.logger != nil {
		s.logger.Info("scheduler task started",
			slog.String("task", task.Name),
			slog.Duration("interval", task.Interval),
		)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("scheduler task stopped", slog.String("task", task.Name))
			}
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				if s.logger != nil {
					s.logger.Error("scheduler task failed",
						slog.String("task", task.Name),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}
