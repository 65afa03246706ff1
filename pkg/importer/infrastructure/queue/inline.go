package queue

import (
	"context"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// InlineQueue runs a task and all its continuations before Enqueue returns.
type InlineQueue struct {
	handler port.TaskHandler
	keys    *keySet
}

// NewInlineQueue creates an InlineQueue.
func NewInlineQueue(handler port.TaskHandler) *InlineQueue {
	return &InlineQueue{handler: handler, keys: newKeySet()}
}

// Enqueue runs the chain of task synchronously. Errors of individual tasks are
// logged, as a background queue would; only a duplicate job key is returned.
func (q *InlineQueue) Enqueue(ctx context.Context, task port.Task) error {
	if !q.keys.reserve(task.JobKey) {
		return port.ErrDuplicateTask
	}
	defer q.keys.release(task.JobKey)

	current := &task
	for current != nil {
		if ctx.Err() != nil {
			logger.Warnf("Chain of '%s' abandoned at offset %d: %v", task.JobKey, current.Offset, ctx.Err())
			return nil
		}
		current = runTask(ctx, q.handler, *current)
	}
	return nil
}

// IsEnqueued reports whether the chain of jobKey is running.
func (q *InlineQueue) IsEnqueued(jobKey string) bool {
	return q.keys.has(jobKey)
}

// Accepting is always true.
func (q *InlineQueue) Accepting() bool {
	return true
}

var _ port.JobQueue = (*InlineQueue)(nil)
