package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
type DefaultJobOperator struct {
	jobs      repository.ImportJobRepository
	logs      repository.ImportLogRepository
	store     *checkpoint.Store
	queue     port.JobQueue
	publisher port.EventPublisher
	recorder  metrics.MetricRecorder
	cfg       *config.Config
}

// Verify that DefaultJobOperator implements the JobOperator interface.
var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a new instance of DefaultJobOperator.
func NewDefaultJobOperator(
	jobs repository.ImportJobRepository,
	logs repository.ImportLogRepository,
	store *checkpoint.Store,
	queue port.JobQueue,
	publisher port.EventPublisher,
	recorder metrics.MetricRecorder,
	cfg *config.Config,
) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobs:      jobs,
		logs:      logs,
		store:     store,
		queue:     queue,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Create validates the job and stores it as Pending.
func (o *DefaultJobOperator) Create(ctx context.Context, job *model.ImportJob) error {
	if _, err := model.ParseImportType(string(job.ImportType)); err != nil {
		return exception.NewImportError("job_operator", err.Error(), exception.ErrInvalidImportType)
	}
	if o.cfg.IsBlocked(job.ReferenceSchema) {
		return exception.NewImportError("job_operator", fmt.Sprintf("Importing %s is not allowed", job.ReferenceSchema), exception.ErrSchemaBlocked)
	}
	if job.GoogleSheetsURL != "" {
		if err := model.ValidateGoogleSheetsURL(job.GoogleSheetsURL); err != nil {
			return exception.NewImportError("job_operator", err.Error(), exception.ErrInvalidSheetsURL)
		}
	}

	now := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreateTime.IsZero() {
		job.CreateTime = now
	}
	job.LastUpdated = now
	job.Status = model.StatusPending
	job.TotalUnits = nil

	if err := o.jobs.SaveImportJob(ctx, job); err != nil {
		return err
	}
	logger.Infof("Import job '%s' created for '%s' (%s).", job.ID, job.ReferenceSchema, job.ImportType)
	return nil
}

// Start validates the preconditions and enqueues the first batch task at offset 0.
// A job that already ran is reset: its previous import log and counters are discarded.
func (o *DefaultJobOperator) Start(ctx context.Context, jobID string, batchSize int) (bool, error) {
	logger.Infof("JobOperator: Start method called. Job ID: %s", jobID)

	job, err := o.jobs.FindImportJobByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !job.HasSource() {
		return false, exception.NewImportError("job_operator", fmt.Sprintf("job '%s' has neither an import file nor a Google Sheets URL", jobID), exception.ErrNoImportSource)
	}
	if o.cfg.IsBlocked(job.ReferenceSchema) {
		return false, exception.NewImportError("job_operator", fmt.Sprintf("Importing %s is not allowed", job.ReferenceSchema), exception.ErrSchemaBlocked)
	}
	if !o.queue.Accepting() {
		return false, exception.NewImportError("job_operator", "background workers are not running, cannot import data", exception.ErrQueueInactive)
	}

	jobKey := model.JobKey(jobID)
	if o.queue.IsEnqueued(jobKey) {
		logger.Infof("Job '%s' is already enqueued.", jobID)
		return false, nil
	}
	if batchSize <= 0 {
		batchSize = o.cfg.Importer.Batch.DefaultBatchSize
	}

	if err := o.store.Clear(ctx, jobID); err != nil {
		return false, err
	}
	if job.Status != model.StatusPending {
		logger.Infof("Job '%s' ran before (status '%s'); discarding its previous import log.", jobID, job.Status)
		if err := o.logs.DeleteByJob(ctx, jobID); err != nil {
			return false, err
		}
		if err := o.jobs.SetTotalUnits(ctx, jobID, nil); err != nil {
			return false, err
		}
	}

	if err := o.jobs.UpdateStatus(ctx, jobID, model.StatusPreprocessing); err != nil {
		return false, err
	}
	o.recorder.RecordJobStart(ctx, job)

	task := port.Task{
		JobKey:    jobKey,
		JobID:     jobID,
		Offset:    0,
		BatchSize: batchSize,
		Queue:     o.cfg.Importer.Batch.Queue,
		Timeout:   o.cfg.Importer.Batch.TaskTimeout(),
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		if errors.Is(err, port.ErrDuplicateTask) {
			logger.Infof("Job '%s' was enqueued concurrently.", jobID)
			return false, nil
		}
		if uerr := o.jobs.UpdateStatus(ctx, jobID, job.Status); uerr != nil {
			logger.Warnf("Failed to restore status of job '%s': %v", jobID, uerr)
		}
		return false, exception.NewImportError("job_operator", fmt.Sprintf("failed to enqueue job '%s'", jobID), err)
	}

	logger.Infof("Job '%s' queued with batch size %d.", jobID, batchSize)
	return true, nil
}

// Stop raises the stop flag and writes Stopped right away. The running batch,
// if any, finalizes the job as Stopped again when it sees the flag.
func (o *DefaultJobOperator) Stop(ctx context.Context, jobID string) error {
	logger.Infof("JobOperator: Stop method called. Job ID: %s", jobID)

	if _, err := o.jobs.FindImportJobByID(ctx, jobID); err != nil {
		return err
	}
	if err := o.store.SetStop(ctx, jobID); err != nil {
		return err
	}
	if err := o.jobs.UpdateStatus(ctx, jobID, model.StatusStopped); err != nil {
		return err
	}
	if err := o.publisher.PublishProgress(ctx, model.ProgressEvent{JobID: jobID, Status: model.StatusStopped}); err != nil {
		logger.Warnf("Failed to publish stop of job '%s': %v", jobID, err)
	}
	logger.Infof("Stop requested for job '%s'.", jobID)
	return nil
}

// Delete removes the job, its import log and its checkpoint. Jobs with a
// pending or running chain cannot be deleted.
func (o *DefaultJobOperator) Delete(ctx context.Context, jobID string) error {
	if _, err := o.jobs.FindImportJobByID(ctx, jobID); err != nil {
		return err
	}
	if o.queue.IsEnqueued(model.JobKey(jobID)) {
		return exception.NewImportError("job_operator", fmt.Sprintf("job '%s' is still running; stop it first", jobID), exception.ErrJobActive)
	}
	if err := o.logs.DeleteByJob(ctx, jobID); err != nil {
		return err
	}
	if err := o.store.Clear(ctx, jobID); err != nil {
		return err
	}
	if err := o.jobs.DeleteImportJob(ctx, jobID); err != nil {
		return err
	}
	logger.Infof("Import job '%s' deleted.", jobID)
	return nil
}
