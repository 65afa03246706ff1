package port

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateTask is returned by Enqueue when a task with the same job key is pending or running.
var ErrDuplicateTask = errors.New("a task with the same job key is already enqueued")

// Task is one batch of a job's chain.
type Task struct {
	JobKey    string
	JobID     string
	Offset    int
	BatchSize int
	// Queue is the queue class the task runs on (e.g. "long").
	Queue string
	// Timeout is the time budget of this task. Zero means no budget.
	Timeout time.Duration
}

// Next returns the continuation of t starting at offset.
func (t Task) Next(offset int) Task {
	next := t
	next.Offset = offset
	return next
}

// TaskHandler executes a task. A non-nil returned task is the continuation,
// which the queue runs under the same job key once the handler has returned.
type TaskHandler func(ctx context.Context, task Task) (*Task, error)

// JobQueue executes tasks in the background with per-job-key single flight.
type JobQueue interface {
	// Enqueue schedules a task. It returns ErrDuplicateTask if the job key is taken.
	Enqueue(ctx context.Context, task Task) error
	// IsEnqueued reports whether a task with the job key is pending or running.
	IsEnqueued(jobKey string) bool
	// Accepting reports whether the queue can currently run background work.
	Accepting() bool
}
