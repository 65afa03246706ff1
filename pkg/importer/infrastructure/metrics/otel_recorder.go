package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	metrics "github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// instrumentationName is the meter and tracer scope of the importer.
const instrumentationName = "github.com/tigerroll/surfin-import"

// OTelRecorder records the importer metrics as OpenTelemetry instruments.
type OTelRecorder struct {
	jobStarts     metric.Int64Counter
	jobEnds       metric.Int64Counter
	batchDuration metric.Float64Histogram
	batchUnits    metric.Int64Counter
	units         metric.Int64Counter
	taskFailures  metric.Int64Counter
}

// NewOTelRecorder creates the instruments on a meter of provider.
func NewOTelRecorder(provider metric.MeterProvider) (*OTelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelRecorder{}
	var err error

	if r.jobStarts, err = meter.Int64Counter("data_import.job.starts",
		metric.WithDescription("Import jobs enqueued.")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create job start counter", err)
	}
	if r.jobEnds, err = meter.Int64Counter("data_import.job.ends",
		metric.WithDescription("Import jobs finished, by terminal status.")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create job end counter", err)
	}
	if r.batchDuration, err = meter.Float64Histogram("data_import.batch.duration",
		metric.WithDescription("Duration of import batches."), metric.WithUnit("s")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create batch duration histogram", err)
	}
	if r.batchUnits, err = meter.Int64Counter("data_import.batch.units",
		metric.WithDescription("Units processed by completed batches.")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create batch unit counter", err)
	}
	if r.units, err = meter.Int64Counter("data_import.units",
		metric.WithDescription("Import units by result.")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create unit counter", err)
	}
	if r.taskFailures, err = meter.Int64Counter("data_import.task.failures",
		metric.WithDescription("Batch tasks that failed as a whole.")); err != nil {
		return nil, exception.NewImportError("metrics", "failed to create task failure counter", err)
	}
	return r, nil
}

func (r *OTelRecorder) RecordJobStart(ctx context.Context, job *model.ImportJob) {
	r.jobStarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schema", job.ReferenceSchema),
		attribute.String("import_type", string(job.ImportType)),
	))
}

func (r *OTelRecorder) RecordJobEnd(ctx context.Context, job *model.ImportJob, status model.JobStatus) {
	r.jobEnds.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schema", job.ReferenceSchema),
		attribute.String("status", status.String()),
	))
}

func (r *OTelRecorder) RecordBatch(ctx context.Context, job *model.ImportJob, units int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("schema", job.ReferenceSchema))
	r.batchDuration.Record(ctx, duration.Seconds(), attrs)
	r.batchUnits.Add(ctx, int64(units), attrs)
}

func (r *OTelRecorder) RecordUnit(ctx context.Context, job *model.ImportJob, success bool) {
	r.units.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schema", job.ReferenceSchema),
		attribute.String("result", unitResult(success)),
	))
}

func (r *OTelRecorder) RecordTaskFailure(ctx context.Context, reason model.FinalizeReason) {
	r.taskFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
