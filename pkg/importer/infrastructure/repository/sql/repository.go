// Package sql implements the importer repositories on gorm.
// Statements run inside the transaction carried by the context, if any.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// SQLImportJobRepository implements repository.ImportJobRepository.
type SQLImportJobRepository struct {
	db *gorm.DB
}

// NewSQLImportJobRepository creates a new instance of SQLImportJobRepository.
func NewSQLImportJobRepository(db *gorm.DB) *SQLImportJobRepository {
	return &SQLImportJobRepository{db: db}
}

func (r *SQLImportJobRepository) SaveImportJob(ctx context.Context, job *model.ImportJob) error {
	const op = "SQLImportJobRepository.SaveImportJob"
	entity := fromDomainImportJob(job)
	if err := gormadapter.DBFromContext(ctx, r.db).Create(entity).Error; err != nil {
		if gormadapter.IsDuplicateKeyError(err) {
			return repository.ErrImportJobExists
		}
		return exception.NewImportError(op, fmt.Sprintf("failed to save ImportJob (ID: %s)", job.ID), err)
	}
	return nil
}

func (r *SQLImportJobRepository) FindImportJobByID(ctx context.Context, id string) (*model.ImportJob, error) {
	const op = "SQLImportJobRepository.FindImportJobByID"
	var entity ImportJobEntity
	err := gormadapter.DBFromContext(ctx, r.db).Where("id = ?", id).Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || gormadapter.IsTableNotExistError(err) {
			return nil, repository.ErrImportJobNotFound
		}
		return nil, exception.NewImportError(op, fmt.Sprintf("failed to find ImportJob by ID: %s", id), err)
	}
	job, err := toDomainImportJob(&entity)
	if err != nil {
		return nil, exception.NewImportError(op, fmt.Sprintf("invalid ImportJob row (ID: %s)", id), err)
	}
	return job, nil
}

func (r *SQLImportJobRepository) UpdateStatus(ctx context.Context, id string, status model.JobStatus) error {
	const op = "SQLImportJobRepository.UpdateStatus"
	return r.update(ctx, op, id, map[string]interface{}{
		"status":       string(status),
		"last_updated": time.Now(),
	})
}

func (r *SQLImportJobRepository) SetTotalUnits(ctx context.Context, id string, total *int) error {
	const op = "SQLImportJobRepository.SetTotalUnits"
	return r.update(ctx, op, id, map[string]interface{}{
		"total_units":  total,
		"last_updated": time.Now(),
	})
}

func (r *SQLImportJobRepository) update(ctx context.Context, op, id string, values map[string]interface{}) error {
	result := gormadapter.DBFromContext(ctx, r.db).
		Model(&ImportJobEntity{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return exception.NewImportError(op, fmt.Sprintf("failed to update ImportJob (ID: %s)", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrImportJobNotFound
	}
	return nil
}

func (r *SQLImportJobRepository) DeleteImportJob(ctx context.Context, id string) error {
	const op = "SQLImportJobRepository.DeleteImportJob"
	result := gormadapter.DBFromContext(ctx, r.db).Where("id = ?", id).Delete(&ImportJobEntity{})
	if result.Error != nil {
		return exception.NewImportError(op, fmt.Sprintf("failed to delete ImportJob (ID: %s)", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrImportJobNotFound
	}
	return nil
}

// SQLImportLogRepository implements repository.ImportLogRepository.
// The (job_id, log_index) unique constraint rejects a second entry for the same index.
type SQLImportLogRepository struct {
	db *gorm.DB
}

// NewSQLImportLogRepository creates a new instance of SQLImportLogRepository.
func NewSQLImportLogRepository(db *gorm.DB) *SQLImportLogRepository {
	return &SQLImportLogRepository{db: db}
}

func (r *SQLImportLogRepository) NextIndex(ctx context.Context, jobID string) (int, error) {
	const op = "SQLImportLogRepository.NextIndex"
	var count int64
	err := gormadapter.DBFromContext(ctx, r.db).Model(&ImportLogEntity{}).Where("job_id = ?", jobID).Count(&count).Error
	if err != nil {
		return 0, exception.NewImportError(op, fmt.Sprintf("failed to count log entries of job '%s'", jobID), err)
	}
	return int(count), nil
}

func (r *SQLImportLogRepository) Append(ctx context.Context, entry *model.ImportLogEntry) error {
	const op = "SQLImportLogRepository.Append"
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreateTime.IsZero() {
		entry.CreateTime = time.Now()
	}
	entity, err := fromDomainImportLogEntry(entry)
	if err != nil {
		return err
	}
	if err := gormadapter.DBFromContext(ctx, r.db).Create(entity).Error; err != nil {
		if gormadapter.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateLogIndex
		}
		return exception.NewImportError(op, fmt.Sprintf("failed to append log entry %d of job '%s'", entry.LogIndex, entry.JobID), err)
	}
	return nil
}

type successCount struct {
	Success bool
	Total   int
}

func (r *SQLImportLogRepository) Aggregate(ctx context.Context, jobID string) (model.LogCounts, error) {
	const op = "SQLImportLogRepository.Aggregate"
	var rows []successCount
	err := gormadapter.DBFromContext(ctx, r.db).
		Model(&ImportLogEntity{}).
		Select("success, COUNT(*) AS total").
		Where("job_id = ?", jobID).
		Group("success").
		Scan(&rows).Error
	if err != nil {
		return model.LogCounts{}, exception.NewImportError(op, fmt.Sprintf("failed to aggregate log of job '%s'", jobID), err)
	}
	var counts model.LogCounts
	for _, row := range rows {
		if row.Success {
			counts.Successes += row.Total
		} else {
			counts.Failures += row.Total
		}
	}
	return counts, nil
}

func (r *SQLImportLogRepository) List(ctx context.Context, jobID string) ([]*model.ImportLogEntry, error) {
	const op = "SQLImportLogRepository.List"
	var entities []ImportLogEntity
	err := gormadapter.DBFromContext(ctx, r.db).
		Where("job_id = ?", jobID).
		Order("log_index DESC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewImportError(op, fmt.Sprintf("failed to list log of job '%s'", jobID), err)
	}
	out := make([]*model.ImportLogEntry, 0, len(entities))
	for i := range entities {
		entry, err := toDomainImportLogEntry(&entities[i])
		if err != nil {
			return nil, exception.NewImportError(op, fmt.Sprintf("invalid log entry %d of job '%s'", entities[i].LogIndex, jobID), err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *SQLImportLogRepository) DeleteByJob(ctx context.Context, jobID string) error {
	const op = "SQLImportLogRepository.DeleteByJob"
	if err := gormadapter.DBFromContext(ctx, r.db).Where("job_id = ?", jobID).Delete(&ImportLogEntity{}).Error; err != nil {
		return exception.NewImportError(op, fmt.Sprintf("failed to delete log of job '%s'", jobID), err)
	}
	return nil
}

var (
	_ repository.ImportJobRepository = (*SQLImportJobRepository)(nil)
	_ repository.ImportLogRepository = (*SQLImportLogRepository)(nil)
)
