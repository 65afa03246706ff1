package usecase

import (
	"context"
	"errors"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// timedOutMessage is the exception text of the entry recorded for a batch that ran out of time.
const timedOutMessage = "Batch timed out"

// BatchTaskHandler is the queue entry point of a batch task. It is the
// boundary for task-level failures: a timeout, an unexpected error or a panic
// in Step is recorded as one synthetic failed log entry and the job is
// finalized with the matching reason, so no job stays Running forever.
type BatchTaskHandler struct {
	runner    *BatchRunner
	finalizer *Finalizer
	logs      repository.ImportLogRepository
	store     *checkpoint.Store
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewBatchTaskHandler creates a new instance of BatchTaskHandler.
func NewBatchTaskHandler(
	runner *BatchRunner,
	finalizer *Finalizer,
	logs repository.ImportLogRepository,
	store *checkpoint.Store,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *BatchTaskHandler {
	return &BatchTaskHandler{
		runner:    runner,
		finalizer: finalizer,
		logs:      logs,
		store:     store,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// Handle runs one batch and returns its continuation, if any.
func (h *BatchTaskHandler) Handle(ctx context.Context, task port.Task) (next *port.Task, err error) {
	ctx, end := h.tracer.StartSpan(ctx, "import.batch", map[string]interface{}{
		"job_id":     task.JobID,
		"offset":     task.Offset,
		"batch_size": task.BatchSize,
	})
	defer end()

	defer func() {
		if r := recover(); r != nil {
			perr := exception.PanicError("batch_task", r)
			logger.Errorf("Batch task of job '%s' panicked at offset %d: %v", task.JobID, task.Offset, r)
			h.fail(ctx, task, perr)
			next, err = nil, perr
		}
	}()

	action, err := h.runner.Step(ctx, task.JobID, task.Offset, task.BatchSize)
	if err != nil {
		if errors.Is(err, repository.ErrImportJobNotFound) {
			logger.Warnf("Job '%s' no longer exists; dropping its batch chain.", task.JobID)
			if cerr := h.store.Clear(context.WithoutCancel(ctx), task.JobID); cerr != nil {
				logger.Warnf("Failed to clear checkpoint of job '%s': %v", task.JobID, cerr)
			}
			return nil, nil
		}
		h.fail(ctx, task, err)
		return nil, err
	}

	h.tracer.RecordEvent(ctx, "import.batch.done", map[string]interface{}{"action": action.String()})
	switch action.Kind {
	case model.ActionReschedule:
		n := task.Next(action.Offset)
		return &n, nil
	case model.ActionFinalize:
		if _, err := h.finalizer.Finalize(context.WithoutCancel(ctx), task.JobID, action.Reason); err != nil {
			logger.Errorf("Failed to finalize job '%s': %v", task.JobID, err)
			return nil, err
		}
	}
	return nil, nil
}

// fail records the task-level failure and finalizes the job. It runs on a
// context detached from the task deadline, which may already have expired.
func (h *BatchTaskHandler) fail(ctx context.Context, task port.Task, cause error) {
	ctx = context.WithoutCancel(ctx)
	h.tracer.RecordError(ctx, "batch_task", cause)

	reason := model.ReasonTaskError
	entry := &model.ImportLogEntry{
		JobID:      task.JobID,
		Success:    false,
		Messages:   []string{exception.ExtractErrorMessage(cause)},
		Exception:  exception.Trace(cause),
		RowIndexes: []int{},
	}
	if exception.IsTimeout(cause) {
		reason = model.ReasonTimedOut
		entry.Messages = []string{timedOutMessage}
		entry.Exception = timedOutMessage
	}
	logger.Errorf("Batch task of job '%s' failed at offset %d (%s): %v", task.JobID, task.Offset, reason, cause)
	h.recorder.RecordTaskFailure(ctx, reason)

	index, err := h.logs.NextIndex(ctx, task.JobID)
	if err != nil {
		logger.Errorf("Failed to read next log index of job '%s': %v", task.JobID, err)
	} else {
		entry.LogIndex = index
		if err := h.logs.Append(ctx, entry); err != nil {
			logger.Errorf("Failed to record task failure of job '%s': %v", task.JobID, err)
		}
	}

	if _, err := h.finalizer.Finalize(ctx, task.JobID, reason); err != nil {
		logger.Errorf("Failed to finalize job '%s' after task failure: %v", task.JobID, err)
	}
}

// TaskHandler adapts h to port.TaskHandler.
func (h *BatchTaskHandler) TaskHandler() port.TaskHandler {
	return h.Handle
}
