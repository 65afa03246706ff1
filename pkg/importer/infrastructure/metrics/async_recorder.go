package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	metrics "github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	logger "github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type     string
	Job      *model.ImportJob
	Status   model.JobStatus
	Units    int
	Duration time.Duration
	Success  bool
	Reason   model.FinalizeReason
}

// Metric event type constants
const (
	MetricEventTypeJobStart    = "job_start"
	MetricEventTypeJobEnd      = "job_end"
	MetricEventTypeBatch       = "batch"
	MetricEventTypeUnit        = "unit"
	MetricEventTypeTaskFailure = "task_failure"
)

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine. Batch workers never block on it.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// bufferSize: The buffer size for the event queue. If 0 or less, a default value is used.
// syncRec: The synchronous recorder that performs the actual metric recording.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			// Drain what is already queued before exiting.
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeJobStart:
		r.syncRecorder.RecordJobStart(ctx, event.Job)
	case MetricEventTypeJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, event.Job, event.Status)
	case MetricEventTypeBatch:
		r.syncRecorder.RecordBatch(ctx, event.Job, event.Units, event.Duration)
	case MetricEventTypeUnit:
		r.syncRecorder.RecordUnit(ctx, event.Job, event.Success)
	case MetricEventTypeTaskFailure:
		r.syncRecorder.RecordTaskFailure(ctx, event.Reason)
	default:
		logger.Warnf("AsyncMetricRecorder: Unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after it has processed the queued events.
func (r *AsyncMetricRecorder) Close() {
	r.closeOnce.Do(func() {
		logger.Debugf("AsyncMetricRecorder: Sending shutdown signal...")
		close(r.stopCh)
		r.wg.Wait()
		logger.Debugf("AsyncMetricRecorder: Shutdown complete.")
	})
}

// sendEvent queues an event, discarding it with a warning if the queue is full.
func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		id := ""
		if event.Job != nil {
			id = event.Job.ID
		}
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s, job: %s). Event discarded.", event.Type, id)
	}
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, job *model.ImportJob) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobStart, Job: job.Clone()})
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, job *model.ImportJob, status model.JobStatus) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobEnd, Job: job.Clone(), Status: status})
}

func (r *AsyncMetricRecorder) RecordBatch(ctx context.Context, job *model.ImportJob, units int, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeBatch, Job: job.Clone(), Units: units, Duration: duration})
}

func (r *AsyncMetricRecorder) RecordUnit(ctx context.Context, job *model.ImportJob, success bool) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeUnit, Job: job.Clone(), Success: success})
}

func (r *AsyncMetricRecorder) RecordTaskFailure(ctx context.Context, reason model.FinalizeReason) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeTaskFailure, Reason: reason})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)
