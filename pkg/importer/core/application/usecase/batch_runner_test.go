package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

func TestBatchRunner_TenUnitsInBatchesOfFour(t *testing.T) {
	h := newHarness(t, 10, true)
	job := h.createJob(t)

	started, err := h.operator.Start(context.Background(), job.ID, 4)
	require.NoError(t, err)
	assert.True(t, started)

	assert.Equal(t, model.StatusSuccess, h.status(t, job.ID))
	require.Len(t, h.publisher.progress, 3)
	for i, want := range []int{4, 8, 10} {
		ev := h.publisher.progress[i]
		assert.Equal(t, want, ev.Current)
		assert.Equal(t, 10, ev.Total)
		assert.Equal(t, i+1, ev.BatchIndex)
		assert.Equal(t, 3, ev.TotalBatches)
	}
	require.Len(t, h.publisher.refresh, 1)
	assert.Equal(t, model.StatusSuccess, h.publisher.refresh[0].Status)

	entries := h.entries(t, job.ID)
	assert.Equal(t, seq(10), logIndexes(entries))
	assert.Equal(t, 1, h.parser.materialized, "units are parsed once per job")

	_, ok, err := h.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "checkpoint is cleared by the finalizer")

	stored, err := h.jobs.FindImportJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TotalUnits)
	assert.Equal(t, 10, *stored.TotalUnits)
}

func TestBatchRunner_ZeroUnitsSucceedImmediately(t *testing.T) {
	h := newHarness(t, 0, false)
	job := h.createJob(t)

	action, err := h.runner.Step(context.Background(), job.ID, 0, 25)
	require.NoError(t, err)
	assert.Equal(t, model.ActionDone, action.Kind)

	assert.Equal(t, model.StatusSuccess, h.status(t, job.ID))
	assert.Empty(t, h.entries(t, job.ID))
	assert.Empty(t, h.publisher.progress)
	require.Len(t, h.publisher.refresh, 1)
	assert.Zero(t, h.parser.materialized)
}

func TestBatchRunner_UnitFailuresAreIsolated(t *testing.T) {
	h := newHarness(t, 5, true)
	h.writer.fail["DOC-001"] = true
	h.writer.fail["DOC-003"] = true
	job := h.createJob(t)

	_, err := h.operator.Start(context.Background(), job.ID, 25)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPartialSuccess, h.status(t, job.ID))
	status, err := h.explorer.GetImportStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.SuccessCount)
	assert.Equal(t, 2, status.FailureCount)
	assert.Equal(t, 5, status.TotalRecords)

	entries := h.entries(t, job.ID)
	assert.Equal(t, seq(5), logIndexes(entries))
	failed := entries[len(entries)-1-1]
	assert.False(t, failed.Success)
	assert.Equal(t, []string{"Value missing for title"}, failed.Messages)
	assert.Equal(t, []int{3}, failed.RowIndexes)
	assert.NotEmpty(t, failed.Exception)
	assert.Equal(t, "DOC-000", entries[len(entries)-1].DocName)
}

func TestBatchRunner_AllUnitsFail(t *testing.T) {
	h := newHarness(t, 3, true)
	for i := 0; i < 3; i++ {
		h.writer.fail[h.parser.units[i].Doc.Name()] = true
	}
	job := h.createJob(t)

	_, err := h.operator.Start(context.Background(), job.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, h.status(t, job.ID))
}

func TestBatchRunner_StopAfterTwoUnits(t *testing.T) {
	h := newHarness(t, 5, false)
	job := h.createJob(t)
	ctx := context.Background()
	h.writer.onWrite = func(call int) {
		if call == 2 {
			require.NoError(t, h.operator.Stop(ctx, job.ID))
		}
	}

	action, err := h.runner.Step(ctx, job.ID, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, model.Finalize(model.ReasonStopped), action)

	cp, ok, err := h.store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, cp.ProcessedCount)
	assert.Len(t, h.entries(t, job.ID), 2)
	assert.Equal(t, 2, h.writer.calls, "no unit after the stop request is processed")

	status, err := h.finalizer.Finalize(ctx, job.ID, action.Reason)
	require.NoError(t, err)
	assert.Equal(t, model.StatusStopped, status)
	assert.Equal(t, model.StatusStopped, h.status(t, job.ID))
	_, ok, err = h.store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NotEmpty(t, h.publisher.progress)
	assert.Equal(t, model.StatusStopped, h.publisher.progress[0].Status)
}

func TestBatchRunner_StopBeforeLaterBatch(t *testing.T) {
	h := newHarness(t, 6, false)
	job := h.createJob(t)
	ctx := context.Background()

	action, err := h.runner.Step(ctx, job.ID, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Reschedule(3), action)

	require.NoError(t, h.store.SetStop(ctx, job.ID))
	action, err = h.runner.Step(ctx, job.ID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Finalize(model.ReasonStopped), action)
	assert.Len(t, h.entries(t, job.ID), 3)
}

func TestBatchRunner_RunningStatusAndContiguousIndexes(t *testing.T) {
	h := newHarness(t, 7, false)
	job := h.createJob(t)
	ctx := context.Background()

	offset := 0
	for {
		action, err := h.runner.Step(ctx, job.ID, offset, 3)
		require.NoError(t, err)
		if action.Kind != model.ActionReschedule {
			assert.Equal(t, model.Finalize(model.ReasonNormal), action)
			break
		}
		assert.Equal(t, model.StatusRunning, h.status(t, job.ID))
		offset = action.Offset
	}
	assert.Equal(t, seq(7), logIndexes(h.entries(t, job.ID)))

	cp, ok, err := h.store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, cp.ProcessedCount)
	assert.True(t, cp.Done())
}

func TestBatchRunner_ParsedCountMismatchIsTaskError(t *testing.T) {
	h := newHarness(t, 4, false)
	job := h.createJob(t)
	ctx := context.Background()

	_, err := h.store.Initialize(ctx, job.ID, 6, 6)
	require.NoError(t, err)
	_, err = h.runner.Step(ctx, job.ID, 0, 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "counted 6 units but parsed 4")
}

func TestBatchRunner_StoppedEmptyJobStaysStopped(t *testing.T) {
	h := newHarness(t, 0, false)
	job := h.createJob(t)
	ctx := context.Background()

	require.NoError(t, h.operator.Stop(ctx, job.ID))
	action, err := h.runner.Step(ctx, job.ID, 0, 25)
	require.NoError(t, err)
	assert.Equal(t, model.Finalize(model.ReasonStopped), action)
	assert.Equal(t, model.StatusStopped, h.status(t, job.ID))

	status, err := h.finalizer.Finalize(ctx, job.ID, action.Reason)
	require.NoError(t, err)
	assert.Equal(t, model.StatusStopped, status)
	assert.Equal(t, model.StatusStopped, h.status(t, job.ID))
	assert.Empty(t, h.entries(t, job.ID))
}

func TestBatchRunner_OffsetPastLastUnitFinalizes(t *testing.T) {
	h := newHarness(t, 10, false)
	job := h.createJob(t)
	ctx := context.Background()

	action, err := h.runner.Step(ctx, job.ID, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, model.Reschedule(4), action)
	calls := h.writer.calls

	action, err = h.runner.Step(ctx, job.ID, 12, 4)
	require.NoError(t, err)
	assert.Equal(t, model.Finalize(model.ReasonNormal), action)

	cp, ok, err := h.store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, cp.ProcessedCount)
	assert.Len(t, h.entries(t, job.ID), 4)
	assert.Equal(t, calls, h.writer.calls)
}
