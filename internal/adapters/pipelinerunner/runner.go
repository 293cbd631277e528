// Package pipelinerunner provides the worker pool that drains the submission
// queue and drives each dequeued job through the processing pipeline.
package pipelinerunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/service"
)

// RunnerOptions configures the pipeline runner adapter.
type RunnerOptions struct {
	Queue    core.SubmissionQueue     // Required: source of accepted jobs
	Pipeline *service.PipelineService // Required: executor
	Logger   *slog.Logger

	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int
	// DequeueWait bounds each blocking dequeue; defaults to 5s so workers
	// observe context cancellation promptly.
	DequeueWait time.Duration
}

// Runner pulls submitted jobs and executes the pipeline for each.
type Runner struct {
	queue    core.SubmissionQueue
	pipeline *service.PipelineService
	logger   *slog.Logger
	workers  int
	wait     time.Duration
}

// NewRunner constructs a pipeline runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("submission queue is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline_runner")
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	wait := opts.DequeueWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Runner{
		queue:    opts.Queue,
		pipeline: opts.Pipeline,
		logger:   logger,
		workers:  workers,
		wait:     wait,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting pipeline runner", "workers", r.workers, "dequeue_wait", r.wait)

	// Derive a cancellable context so the first fatal error stops all workers.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		job, err := r.queue.Dequeue(ctx, r.wait)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dequeue submission: %w", err)
		case job == nil:
			// Dequeue timed out with nothing pending; loop re-checks ctx.
		default:
			// Execute publishes the terminal status itself; the returned
			// error is a per-job failure, never fatal for the worker.
			if execErr := r.pipeline.Execute(ctx, job); execErr != nil {
				r.logger.WarnContext(ctx, "pipeline run failed", "job_id", job.JobID, "error", execErr)
			}
		}
	}
	return ctx.Err()
}
