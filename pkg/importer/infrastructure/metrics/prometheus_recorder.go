// Package metrics provides the MetricRecorder implementations of the importer:
// a Prometheus recorder, an OpenTelemetry recorder and an asynchronous wrapper.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	metrics "github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	logger "github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobStartCounter *prometheus.CounterVec
	jobEndCounter   *prometheus.CounterVec

	// Batch Metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchUnitCount       *prometheus.CounterVec

	// Unit Metrics
	unitCounter *prometheus.CounterVec

	taskFailureCounter *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobStartCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "data_import_job_start_total",
			Help: "Total number of import jobs enqueued.",
		}, []string{"schema", "import_type"}),
		jobEndCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "data_import_job_end_total",
			Help: "Total number of import jobs finished by terminal status.",
		}, []string{"schema", "status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "data_import_batch_duration_seconds",
			Help:    "Duration of import batches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"schema"}),
		batchUnitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "data_import_batch_units_total",
			Help: "Total units processed by completed batches.",
		}, []string{"schema"}),
		unitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "data_import_unit_total",
			Help: "Total import units by result.",
		}, []string{"schema", "result"}), // result: success, failure
		taskFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "data_import_task_failure_total",
			Help: "Total batch tasks that failed as a whole, by finalize reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(r.jobStartCounter)
	registry.MustRegister(r.jobEndCounter)
	registry.MustRegister(r.batchDurationSeconds)
	registry.MustRegister(r.batchUnitCount)
	registry.MustRegister(r.unitCounter)
	registry.MustRegister(r.taskFailureCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, job *model.ImportJob) {
	r.jobStartCounter.WithLabelValues(job.ReferenceSchema, string(job.ImportType)).Inc()
	logger.Debugf("Metrics: Job '%s' started.", job.ID)
}

func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, job *model.ImportJob, status model.JobStatus) {
	r.jobEndCounter.WithLabelValues(job.ReferenceSchema, status.String()).Inc()
	logger.Debugf("Metrics: Job '%s' ended with status '%s'.", job.ID, status)
}

func (r *PrometheusRecorder) RecordBatch(ctx context.Context, job *model.ImportJob, units int, duration time.Duration) {
	r.batchDurationSeconds.WithLabelValues(job.ReferenceSchema).Observe(duration.Seconds())
	r.batchUnitCount.WithLabelValues(job.ReferenceSchema).Add(float64(units))
}

func (r *PrometheusRecorder) RecordUnit(ctx context.Context, job *model.ImportJob, success bool) {
	r.unitCounter.WithLabelValues(job.ReferenceSchema, unitResult(success)).Inc()
}

func (r *PrometheusRecorder) RecordTaskFailure(ctx context.Context, reason model.FinalizeReason) {
	r.taskFailureCounter.WithLabelValues(string(reason)).Inc()
}

func unitResult(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
