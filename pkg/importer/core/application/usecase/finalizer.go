package usecase

import (
	"context"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// DecideStatus maps the end reason of a chain and the import log counts to a terminal status.
// The rules are evaluated in order; the first match wins.
func DecideStatus(reason model.FinalizeReason, counts model.LogCounts, total int) model.JobStatus {
	switch {
	case reason == model.ReasonTimedOut:
		return model.StatusTimedOut
	case reason == model.ReasonStopped:
		return model.StatusStopped
	case reason == model.ReasonTaskError && counts.Failures == total:
		return model.StatusError
	case counts.Failures > 0 && counts.Successes > 0:
		return model.StatusPartialSuccess
	case counts.Successes == total:
		return model.StatusSuccess
	case counts.Successes > 0:
		return model.StatusPartialSuccess
	default:
		return model.StatusError
	}
}

// Finalizer writes the terminal status of a job and releases its checkpoint.
type Finalizer struct {
	jobs      repository.ImportJobRepository
	logs      repository.ImportLogRepository
	store     *checkpoint.Store
	publisher port.EventPublisher
	recorder  metrics.MetricRecorder
}

// NewFinalizer creates a new instance of Finalizer.
func NewFinalizer(
	jobs repository.ImportJobRepository,
	logs repository.ImportLogRepository,
	store *checkpoint.Store,
	publisher port.EventPublisher,
	recorder metrics.MetricRecorder,
) *Finalizer {
	return &Finalizer{jobs: jobs, logs: logs, store: store, publisher: publisher, recorder: recorder}
}

// Finalize computes and writes the terminal status of the job, clears its
// checkpoint and publishes a refresh event. Running it again recomputes the same status.
func (f *Finalizer) Finalize(ctx context.Context, jobID string, reason model.FinalizeReason) (model.JobStatus, error) {
	job, err := f.jobs.FindImportJobByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	counts, err := f.logs.Aggregate(ctx, jobID)
	if err != nil {
		return "", err
	}

	total, err := f.totalUnits(ctx, job, counts)
	if err != nil {
		return "", err
	}
	status := DecideStatus(reason, counts, total)

	if err := f.jobs.UpdateStatus(ctx, jobID, status); err != nil {
		return "", err
	}
	if err := f.store.Clear(ctx, jobID); err != nil {
		logger.Warnf("Failed to clear checkpoint of job '%s': %v", jobID, err)
	}
	if err := f.publisher.PublishRefresh(ctx, model.RefreshEvent{JobID: jobID, Status: status}); err != nil {
		logger.Warnf("Failed to publish refresh of job '%s': %v", jobID, err)
	}
	f.recorder.RecordJobEnd(ctx, job, status)

	logger.Infof("Job '%s' finished with status '%s' (reason: %s, successes: %d, failures: %d, total: %d).",
		jobID, status, reason, counts.Successes, counts.Failures, total)
	return status, nil
}

// totalUnits reads the unit count from the checkpoint, then from the job.
// If neither knows it (the chain failed before counting), the number of log
// entries stands in for it.
func (f *Finalizer) totalUnits(ctx context.Context, job *model.ImportJob, counts model.LogCounts) (int, error) {
	cp, ok, err := f.store.Get(ctx, job.ID)
	if err != nil {
		return 0, err
	}
	if ok {
		return cp.TotalUnits, nil
	}
	if job.TotalUnits != nil {
		return *job.TotalUnits, nil
	}
	return counts.Total(), nil
}
