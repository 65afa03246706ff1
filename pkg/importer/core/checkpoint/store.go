// Package checkpoint keeps per-job progress between batch tasks in the shared cache.
//
// Keys are namespaced per job:
//
//	data_import:<id>:checkpoint  progress record (model.Checkpoint)
//	data_import:<id>:payloads    cached import units
//	data_import:<id>:stop        cooperative stop flag
//
// The store does no locking. Only one batch task of a job runs at a time, and
// the stop flag is the only key written from outside the chain.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/serialization"
)

const moduleName = "checkpoint"

// Store reads and writes checkpoints, the unit cache and the stop flag.
type Store struct {
	cache port.Cache
}

// NewStore creates a Store backed by cache.
func NewStore(cache port.Cache) *Store {
	return &Store{cache: cache}
}

func checkpointKey(jobID string) string { return fmt.Sprintf("data_import:%s:checkpoint", jobID) }
func payloadsKey(jobID string) string   { return fmt.Sprintf("data_import:%s:payloads", jobID) }
func stopKey(jobID string) string       { return fmt.Sprintf("data_import:%s:stop", jobID) }

// Initialize writes a fresh checkpoint unless one is already initialized.
// It returns the checkpoint in effect after the call.
func (s *Store) Initialize(ctx context.Context, jobID string, total, batchSize int) (*model.Checkpoint, error) {
	existing, ok, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}
	cp := model.NewCheckpoint(total, batchSize)
	if err := s.put(ctx, jobID, cp); err != nil {
		return nil, err
	}
	logger.Debugf("Checkpoint initialized for job '%s': total=%d batch_size=%d batches=%d", jobID, total, batchSize, cp.TotalBatches)
	return cp, nil
}

// Get returns the checkpoint of a job. The boolean is false when no initialized checkpoint exists.
func (s *Store) Get(ctx context.Context, jobID string) (*model.Checkpoint, bool, error) {
	data, ok, err := s.cache.Get(ctx, checkpointKey(jobID))
	if err != nil {
		return nil, false, exception.NewImportError(moduleName, fmt.Sprintf("failed to read checkpoint of job '%s'", jobID), err)
	}
	if !ok {
		return nil, false, nil
	}
	cp, err := serialization.Unmarshal[*model.Checkpoint]("checkpoint", data)
	if err != nil {
		return nil, false, err
	}
	if cp == nil || !cp.Initialized {
		return nil, false, nil
	}
	return cp, true, nil
}

// IncrementProcessed adds delta to the processed count and returns the new count.
func (s *Store) IncrementProcessed(ctx context.Context, jobID string, delta int) (int, error) {
	cp, ok, err := s.Get(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, exception.NewImportError(moduleName, fmt.Sprintf("checkpoint of job '%s' is not initialized", jobID), nil)
	}
	cp.ProcessedCount += delta
	if cp.ProcessedCount > cp.TotalUnits {
		cp.ProcessedCount = cp.TotalUnits
	}
	if err := s.put(ctx, jobID, cp); err != nil {
		return 0, err
	}
	return cp.ProcessedCount, nil
}

// SetStop raises the stop flag of a job.
func (s *Store) SetStop(ctx context.Context, jobID string) error {
	if err := s.cache.Set(ctx, stopKey(jobID), []byte("1")); err != nil {
		return exception.NewImportError(moduleName, fmt.Sprintf("failed to set stop flag of job '%s'", jobID), err)
	}
	return nil
}

// IsStopped reports whether the stop flag of a job is raised.
func (s *Store) IsStopped(ctx context.Context, jobID string) (bool, error) {
	_, ok, err := s.cache.Get(ctx, stopKey(jobID))
	if err != nil {
		return false, exception.NewImportError(moduleName, fmt.Sprintf("failed to read stop flag of job '%s'", jobID), err)
	}
	return ok, nil
}

// LoadUnits returns the cached units of a job, or false if parsing has not run yet.
func (s *Store) LoadUnits(ctx context.Context, jobID string) ([]model.ImportUnit, bool, error) {
	data, ok, err := s.cache.Get(ctx, payloadsKey(jobID))
	if err != nil {
		return nil, false, exception.NewImportError(moduleName, fmt.Sprintf("failed to read cached units of job '%s'", jobID), err)
	}
	if !ok {
		return nil, false, nil
	}
	units, err := serialization.Unmarshal[[]model.ImportUnit]("import units", data)
	if err != nil {
		return nil, false, err
	}
	return units, true, nil
}

// SaveUnits caches the parsed units of a job.
func (s *Store) SaveUnits(ctx context.Context, jobID string, units []model.ImportUnit) error {
	if units == nil {
		units = []model.ImportUnit{}
	}
	data, err := serialization.Marshal("import units", units)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, payloadsKey(jobID), data); err != nil {
		return exception.NewImportError(moduleName, fmt.Sprintf("failed to cache units of job '%s'", jobID), err)
	}
	return nil
}

// Clear removes the checkpoint, the unit cache and the stop flag of a job.
func (s *Store) Clear(ctx context.Context, jobID string) error {
	if err := s.cache.Delete(ctx, checkpointKey(jobID), payloadsKey(jobID), stopKey(jobID)); err != nil {
		return exception.NewImportError(moduleName, fmt.Sprintf("failed to clear checkpoint of job '%s'", jobID), err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, jobID string, cp *model.Checkpoint) error {
	data, err := serialization.Marshal("checkpoint", cp)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, checkpointKey(jobID), data); err != nil {
		return exception.NewImportError(moduleName, fmt.Sprintf("failed to write checkpoint of job '%s'", jobID), err)
	}
	return nil
}
