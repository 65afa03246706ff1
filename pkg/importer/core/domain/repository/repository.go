// Package repository defines the persistence interfaces of the importer domain.
package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

var (
	// ErrImportJobNotFound is returned when no ImportJob exists with the given ID.
	ErrImportJobNotFound = errors.New("import job not found")
	// ErrImportJobExists is returned when saving an ImportJob whose ID is taken.
	ErrImportJobExists = errors.New("import job already exists")
	// ErrDuplicateLogIndex is returned when an entry with the same (job, index) was already appended.
	ErrDuplicateLogIndex = errors.New("duplicate import log index")
)

// ImportJobRepository persists ImportJobs.
type ImportJobRepository interface {
	// SaveImportJob stores a new job.
	SaveImportJob(ctx context.Context, job *model.ImportJob) error
	// FindImportJobByID returns ErrImportJobNotFound if the job does not exist.
	FindImportJobByID(ctx context.Context, id string) (*model.ImportJob, error)
	// UpdateStatus writes the status of a job and bumps its LastUpdated time.
	UpdateStatus(ctx context.Context, id string, status model.JobStatus) error
	// SetTotalUnits records the unit count found by the count pass. nil clears it.
	SetTotalUnits(ctx context.Context, id string, total *int) error
	// DeleteImportJob removes the job. The caller deletes its log first.
	DeleteImportJob(ctx context.Context, id string) error
}

// ImportLogRepository is the append-only Import Log.
type ImportLogRepository interface {
	// NextIndex returns the index the next appended entry must carry (the number of entries so far).
	NextIndex(ctx context.Context, jobID string) (int, error)
	// Append durably stores an entry.
	Append(ctx context.Context, entry *model.ImportLogEntry) error
	// Aggregate counts successes and failures of a job.
	Aggregate(ctx context.Context, jobID string) (model.LogCounts, error)
	// List returns the entries of a job, most recent first.
	List(ctx context.Context, jobID string) ([]*model.ImportLogEntry, error)
	// DeleteByJob removes every entry of a job.
	DeleteByJob(ctx context.Context, jobID string) error
}
