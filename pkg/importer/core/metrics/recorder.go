// Package metrics defines the observability hooks the importer core calls into.
// Concrete recorders and tracers live in the infrastructure layer.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// MetricRecorder records job, batch and unit metrics.
type MetricRecorder interface {
	// RecordJobStart is called when a job chain is enqueued.
	RecordJobStart(ctx context.Context, job *model.ImportJob)
	// RecordJobEnd is called when the terminal status of a job has been written.
	RecordJobEnd(ctx context.Context, job *model.ImportJob, status model.JobStatus)
	// RecordBatch is called after each batch with the number of units it processed.
	RecordBatch(ctx context.Context, job *model.ImportJob, units int, duration time.Duration)
	// RecordUnit is called once per processed unit.
	RecordUnit(ctx context.Context, job *model.ImportJob, success bool)
	// RecordTaskFailure is called when a batch task fails as a whole.
	RecordTaskFailure(ctx context.Context, reason model.FinalizeReason)
}

// NoOpMetricRecorder discards everything.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, job *model.ImportJob) {}
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, job *model.ImportJob, status model.JobStatus) {
}
func (r *NoOpMetricRecorder) RecordBatch(ctx context.Context, job *model.ImportJob, units int, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordUnit(ctx context.Context, job *model.ImportJob, success bool) {}
func (r *NoOpMetricRecorder) RecordTaskFailure(ctx context.Context, reason model.FinalizeReason) {}
