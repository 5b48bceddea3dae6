// Package batch runs per-file work strictly one file at a time and tracks progress.
package batch

import (
	"context"
	"errors"
	"time"
)

// Status is the outcome of one task.
type Status string

const (
	StatusDone      Status = "done"
	StatusPlanned   Status = "planned"   // dry run: would have been processed
	StatusSkipped   Status = "skipped"   // already in the desired state
	StatusFailed    Status = "failed"    // processing error, run continued
	StatusCancelled Status = "cancelled" // never started because the run was cancelled
)

// Task is one file to process.
type Task struct {
	Path string
	Room string
}

// Processor handles one task. A returned error marks the task failed but
// never stops the run.
type Processor interface {
	Process(ctx context.Context, task Task) (Status, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, task Task) (Status, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, task Task) (Status, error) {
	return f(ctx, task)
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called before each task starts (index is 1-based) and
// after it completes with its result.
type ProgressFunc func(index, total int, task Task, result *Result)

// Config configures the runner.
type Config struct {
	Processor  Processor
	OnProgress ProgressFunc
}

// Runner processes tasks sequentially in the given order.
type Runner struct {
	processor  Processor
	onProgress ProgressFunc
}

// New creates a runner.
func New(cfg Config) *Runner {
	return &Runner{
		processor:  cfg.Processor,
		onProgress: cfg.OnProgress,
	}
}

// Run processes every task and returns one result per task, in task order.
// Cancellation is checked between tasks; a task that has started always
// finishes, and the remaining tasks are reported as cancelled.
func (r *Runner) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, 0, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			res := Result{Task: task, Status: StatusCancelled, Err: err}
			results = append(results, res)
			if r.onProgress != nil {
				r.onProgress(i+1, len(tasks), task, &res)
			}
			continue
		}

		if r.onProgress != nil {
			r.onProgress(i+1, len(tasks), task, nil)
		}

		start := time.Now()
		status, err := r.processor.Process(ctx, task)
		res := Result{
			Task:    task,
			Status:  status,
			Err:     err,
			Elapsed: time.Since(start),
		}
		if err != nil {
			res.Status = StatusFailed
			if errors.Is(err, context.Canceled) {
				res.Status = StatusCancelled
			}
		}
		results = append(results, res)

		if r.onProgress != nil {
			r.onProgress(i+1, len(tasks), task, &res)
		}
	}

	return results
}

// Counts tallies results by status.
type Counts struct {
	Done      int
	Planned   int
	Skipped   int
	Failed    int
	Cancelled int
}

// Total returns the number of counted results.
func (c Counts) Total() int {
	return c.Done + c.Planned + c.Skipped + c.Failed + c.Cancelled
}

// Count tallies results.
func Count(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.Status {
		case StatusDone:
			c.Done++
		case StatusPlanned:
			c.Planned++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}
