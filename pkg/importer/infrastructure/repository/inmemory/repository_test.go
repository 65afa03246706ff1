package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
)

func TestImportJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryImportJobRepository()

	job := model.NewImportJob("Customer", model.ImportTypeInsert)
	require.NoError(t, repo.SaveImportJob(ctx, job))
	assert.ErrorIs(t, repo.SaveImportJob(ctx, job), repository.ErrImportJobExists)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, model.StatusRunning))
	total := 12
	require.NoError(t, repo.SetTotalUnits(ctx, job.ID, &total))
	total = 99

	found, err := repo.FindImportJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, found.Status)
	require.NotNil(t, found.TotalUnits)
	assert.Equal(t, 12, *found.TotalUnits)

	found.Status = model.StatusError
	again, err := repo.FindImportJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, again.Status, "callers get copies")

	require.NoError(t, repo.DeleteImportJob(ctx, job.ID))
	_, err = repo.FindImportJobByID(ctx, job.ID)
	assert.ErrorIs(t, err, repository.ErrImportJobNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, job.ID, model.StatusError), repository.ErrImportJobNotFound)
}

func TestImportLogRepository_AppendListAggregate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryImportLogRepository()

	for i, success := range []bool{true, false, true} {
		idx, err := repo.NextIndex(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		require.NoError(t, repo.Append(ctx, &model.ImportLogEntry{JobID: "job-1", LogIndex: idx, Success: success}))
	}
	require.NoError(t, repo.Append(ctx, &model.ImportLogEntry{JobID: "job-2", LogIndex: 0, Success: false}))

	assert.ErrorIs(t, repo.Append(ctx, &model.ImportLogEntry{JobID: "job-1", LogIndex: 1}), repository.ErrDuplicateLogIndex)

	counts, err := repo.Aggregate(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.LogCounts{Successes: 2, Failures: 1}, counts)

	entries, err := repo.List(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{2, 1, 0}, []int{entries[0].LogIndex, entries[1].LogIndex, entries[2].LogIndex})
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreateTime.IsZero())

	require.NoError(t, repo.DeleteByJob(ctx, "job-1"))
	idx, err := repo.NextIndex(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	counts, err = repo.Aggregate(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failures)
}
