package usecase

import (
	"context"
	"io"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// JobOperator controls import jobs: creation, start, stop and deletion.
type JobOperator interface {
	// Create validates and stores a new Pending job.
	Create(ctx context.Context, job *model.ImportJob) error

	// Start enqueues the first batch task of the job and returns without waiting for it.
	// It returns false if a task chain for the job is already pending or running.
	// batchSize <= 0 selects the configured default.
	Start(ctx context.Context, jobID string, batchSize int) (bool, error)

	// Stop raises the stop flag of the job and marks it Stopped.
	// The running batch observes the flag before its next unit.
	Stop(ctx context.Context, jobID string) error

	// Delete removes an idle job together with its import log and checkpoint.
	Delete(ctx context.Context, jobID string) error
}

// ImportStatus is the aggregated state of a job.
type ImportStatus struct {
	Status       model.JobStatus `json:"status"`
	SuccessCount int             `json:"success"`
	FailureCount int             `json:"failed"`
	// TotalRecords is 0 until the first batch has counted the units.
	TotalRecords int `json:"total_records"`
}

// JobExplorer answers read-only queries about jobs and their import log.
type JobExplorer interface {
	// GetImportJob returns the job.
	GetImportJob(ctx context.Context, jobID string) (*model.ImportJob, error)

	// GetImportStatus aggregates the import log of the job on demand.
	GetImportStatus(ctx context.Context, jobID string) (ImportStatus, error)

	// GetImportLogs returns the log entries of the job, most recent first.
	GetImportLogs(ctx context.Context, jobID string) ([]*model.ImportLogEntry, error)

	// ExportErroredRows writes the header and every source row of a failed unit as CSV.
	ExportErroredRows(ctx context.Context, jobID string, w io.Writer) error

	// DownloadImportLog writes the full import log and returns its content type.
	DownloadImportLog(ctx context.Context, jobID string, w io.Writer) (string, error)
}
