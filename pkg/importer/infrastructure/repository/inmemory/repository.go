// Package inmemory provides map-backed repositories, used by tests and by the
// single-process "inline" mode.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
)

// InMemoryImportJobRepository stores jobs in a map. Jobs are cloned on the way in and out.
type InMemoryImportJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.ImportJob
}

// NewInMemoryImportJobRepository creates an empty repository.
func NewInMemoryImportJobRepository() *InMemoryImportJobRepository {
	return &InMemoryImportJobRepository{jobs: make(map[string]*model.ImportJob)}
}

// SaveImportJob stores a new job.
func (r *InMemoryImportJobRepository) SaveImportJob(ctx context.Context, job *model.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return repository.ErrImportJobExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// FindImportJobByID returns a copy of the stored job.
func (r *InMemoryImportJobRepository) FindImportJobByID(ctx context.Context, id string) (*model.ImportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrImportJobNotFound
	}
	return job.Clone(), nil
}

// UpdateStatus writes the status of a job.
func (r *InMemoryImportJobRepository) UpdateStatus(ctx context.Context, id string, status model.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrImportJobNotFound
	}
	job.Status = status
	job.LastUpdated = time.Now()
	return nil
}

// SetTotalUnits records the unit count of a job.
func (r *InMemoryImportJobRepository) SetTotalUnits(ctx context.Context, id string, total *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrImportJobNotFound
	}
	if total == nil {
		job.TotalUnits = nil
	} else {
		n := *total
		job.TotalUnits = &n
	}
	job.LastUpdated = time.Now()
	return nil
}

// DeleteImportJob removes a job.
func (r *InMemoryImportJobRepository) DeleteImportJob(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return repository.ErrImportJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

// InMemoryImportLogRepository stores log entries per job in append order.
type InMemoryImportLogRepository struct {
	mu      sync.RWMutex
	entries map[string][]*model.ImportLogEntry
}

// NewInMemoryImportLogRepository creates an empty repository.
func NewInMemoryImportLogRepository() *InMemoryImportLogRepository {
	return &InMemoryImportLogRepository{entries: make(map[string][]*model.ImportLogEntry)}
}

// NextIndex returns the number of entries of the job.
func (r *InMemoryImportLogRepository) NextIndex(ctx context.Context, jobID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[jobID]), nil
}

// Append stores a copy of entry. An ID and creation time are assigned if missing.
func (r *InMemoryImportLogRepository) Append(ctx context.Context, entry *model.ImportLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries[entry.JobID] {
		if existing.LogIndex == entry.LogIndex {
			return repository.ErrDuplicateLogIndex
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreateTime.IsZero() {
		entry.CreateTime = time.Now()
	}
	r.entries[entry.JobID] = append(r.entries[entry.JobID], cloneEntry(entry))
	return nil
}

// Aggregate counts successes and failures of a job.
func (r *InMemoryImportLogRepository) Aggregate(ctx context.Context, jobID string) (model.LogCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var counts model.LogCounts
	for _, e := range r.entries[jobID] {
		counts.Add(e.Success)
	}
	return counts, nil
}

// List returns copies of the entries of a job ordered by LogIndex descending.
func (r *InMemoryImportLogRepository) List(ctx context.Context, jobID string) ([]*model.ImportLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.ImportLogEntry, 0, len(r.entries[jobID]))
	for _, e := range r.entries[jobID] {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogIndex > out[j].LogIndex })
	return out, nil
}

// DeleteByJob removes every entry of a job.
func (r *InMemoryImportLogRepository) DeleteByJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, jobID)
	return nil
}

func cloneEntry(e *model.ImportLogEntry) *model.ImportLogEntry {
	c := *e
	c.Messages = append([]string(nil), e.Messages...)
	c.RowIndexes = append([]int(nil), e.RowIndexes...)
	return &c
}

var (
	_ repository.ImportJobRepository = (*InMemoryImportJobRepository)(nil)
	_ repository.ImportLogRepository = (*InMemoryImportLogRepository)(nil)
)
