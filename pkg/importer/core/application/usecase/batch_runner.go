package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// BatchRunner processes one batch of a job per call to Step.
// It never enqueues anything itself; the returned NextAction tells the caller
// whether to continue the chain, finalize it, or stop.
type BatchRunner struct {
	jobs      repository.ImportJobRepository
	logs      repository.ImportLogRepository
	store     *checkpoint.Store
	parser    port.FileParser
	processor *UnitProcessor
	publisher port.EventPublisher
	recorder  metrics.MetricRecorder
	batchCfg  *config.BatchConfig
}

// NewBatchRunner creates a new instance of BatchRunner.
func NewBatchRunner(
	jobs repository.ImportJobRepository,
	logs repository.ImportLogRepository,
	store *checkpoint.Store,
	parser port.FileParser,
	processor *UnitProcessor,
	publisher port.EventPublisher,
	recorder metrics.MetricRecorder,
	batchCfg *config.BatchConfig,
) *BatchRunner {
	return &BatchRunner{
		jobs:      jobs,
		logs:      logs,
		store:     store,
		parser:    parser,
		processor: processor,
		publisher: publisher,
		recorder:  recorder,
		batchCfg:  batchCfg,
	}
}

// Step processes the units [offset, offset+batchSize) of the job.
//
// The first call of a chain counts the units and initializes the checkpoint;
// a job without units is marked Success right away and Step returns Done.
// Units are parsed once per job and cached. Before each unit the stop flag
// and the task deadline are checked: a raised flag ends the chain with
// Finalize(stopped), an expired deadline is returned as a task-level error.
// Unit failures are logged and never abort the batch.
func (r *BatchRunner) Step(ctx context.Context, jobID string, offset, batchSize int) (model.NextAction, error) {
	started := time.Now()
	if batchSize <= 0 {
		batchSize = r.batchCfg.DefaultBatchSize
	}

	job, err := r.jobs.FindImportJobByID(ctx, jobID)
	if err != nil {
		return model.NextAction{}, err
	}

	cp, ok, err := r.store.Get(ctx, jobID)
	if err != nil {
		return model.NextAction{}, err
	}
	if !ok {
		total, err := r.parser.CountUnits(ctx, job)
		if err != nil {
			return model.NextAction{}, exception.NewImportError("batch_runner", fmt.Sprintf("failed to count units of job '%s'", jobID), err)
		}
		if err := r.jobs.SetTotalUnits(ctx, jobID, &total); err != nil {
			return model.NextAction{}, err
		}
		if total == 0 {
			stopped, err := r.store.IsStopped(ctx, jobID)
			if err != nil {
				return model.NextAction{}, err
			}
			if stopped {
				return model.Finalize(model.ReasonStopped), nil
			}
			return r.finishEmpty(ctx, job)
		}
		if cp, err = r.store.Initialize(ctx, jobID, total, batchSize); err != nil {
			return model.NextAction{}, err
		}
		logger.Infof("Job '%s': %d units in %d batches of %d.", jobID, cp.TotalUnits, cp.TotalBatches, cp.BatchSize)
	}

	// A continuation past the last unit has nothing left to write.
	if offset >= cp.TotalUnits {
		return model.Finalize(model.ReasonNormal), nil
	}

	units, ok, err := r.store.LoadUnits(ctx, jobID)
	if err != nil {
		return model.NextAction{}, err
	}
	if !ok {
		if units, err = r.parser.MaterializeUnits(ctx, job); err != nil {
			return model.NextAction{}, exception.NewImportError("batch_runner", fmt.Sprintf("failed to parse units of job '%s'", jobID), err)
		}
		if err := r.store.SaveUnits(ctx, jobID, units); err != nil {
			return model.NextAction{}, err
		}
	}

	if err := r.jobs.UpdateStatus(ctx, jobID, model.StatusRunning); err != nil {
		return model.NextAction{}, err
	}

	// The checkpoint batch size wins over the task argument so that every
	// batch of a chain has the same size.
	size := cp.BatchSize
	end := min(offset+size, cp.TotalUnits)
	if end > len(units) {
		return model.NextAction{}, exception.NewImportErrorf("batch_runner",
			"job '%s' counted %d units but parsed %d", jobID, cp.TotalUnits, len(units))
	}
	batchIndex := model.BatchIndex(offset, size)

	index, err := r.logs.NextIndex(ctx, jobID)
	if err != nil {
		return model.NextAction{}, err
	}

	logger.Debugf("Job '%s': batch %d/%d, units [%d, %d), first log index %d.", jobID, batchIndex, cp.TotalBatches, offset, end, index)

	for i := offset; i < end; i++ {
		stopped, err := r.store.IsStopped(ctx, jobID)
		if err != nil {
			return model.NextAction{}, err
		}
		if stopped {
			logger.Infof("Job '%s' stopped before unit %d.", jobID, i)
			r.recordProgress(ctx, jobID, i-offset)
			return model.Finalize(model.ReasonStopped), nil
		}
		if err := ctx.Err(); err != nil {
			r.recordProgress(ctx, jobID, i-offset)
			if errors.Is(err, context.DeadlineExceeded) {
				return model.NextAction{}, exception.NewImportErrorf("batch_runner", "batch %d of job '%s' ran out of time at unit %d", batchIndex, jobID, i, exception.ErrTaskTimedOut)
			}
			return model.NextAction{}, err
		}

		unit := units[i]
		result := r.processor.Process(ctx, job, unit)
		entry := &model.ImportLogEntry{
			JobID:      jobID,
			LogIndex:   index,
			Success:    result.Success,
			DocName:    result.DocName,
			Messages:   result.Messages,
			Exception:  result.Exception,
			RowIndexes: unit.RowIndexes,
		}
		// The outcome of a written unit is recorded even if the deadline expired meanwhile.
		if err := r.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
			return model.NextAction{}, err
		}
		r.recorder.RecordUnit(ctx, job, result.Success)
		index++
	}

	processed, err := r.store.IncrementProcessed(ctx, jobID, end-offset)
	if err != nil {
		return model.NextAction{}, err
	}
	r.recorder.RecordBatch(ctx, job, end-offset, time.Since(started))

	if err := r.publisher.PublishProgress(ctx, model.ProgressEvent{
		JobID:        jobID,
		Current:      processed,
		Total:        cp.TotalUnits,
		BatchIndex:   batchIndex,
		TotalBatches: cp.TotalBatches,
	}); err != nil {
		logger.Warnf("Failed to publish progress of job '%s': %v", jobID, err)
	}

	if end >= cp.TotalUnits {
		return model.Finalize(model.ReasonNormal), nil
	}
	return model.Reschedule(end), nil
}

// finishEmpty is the degenerate finalization of a job without units.
func (r *BatchRunner) finishEmpty(ctx context.Context, job *model.ImportJob) (model.NextAction, error) {
	logger.Infof("Job '%s' has no units to import.", job.ID)
	if err := r.jobs.UpdateStatus(ctx, job.ID, model.StatusSuccess); err != nil {
		return model.NextAction{}, err
	}
	if err := r.store.Clear(ctx, job.ID); err != nil {
		logger.Warnf("Failed to clear checkpoint of job '%s': %v", job.ID, err)
	}
	if err := r.publisher.PublishRefresh(ctx, model.RefreshEvent{JobID: job.ID, Status: model.StatusSuccess}); err != nil {
		logger.Warnf("Failed to publish refresh of job '%s': %v", job.ID, err)
	}
	r.recorder.RecordJobEnd(ctx, job, model.StatusSuccess)
	return model.Done(), nil
}

// recordProgress counts the units of an interrupted batch that were processed.
func (r *BatchRunner) recordProgress(ctx context.Context, jobID string, n int) {
	if n <= 0 {
		return
	}
	if _, err := r.store.IncrementProcessed(context.WithoutCancel(ctx), jobID, n); err != nil {
		logger.Warnf("Failed to record progress of job '%s': %v", jobID, err)
	}
}
