package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/usecase"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/inmemory"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/queue"
	repo "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// fakeParser serves a fixed list of units. Unit i covers source row i+2.
type fakeParser struct {
	units        []model.ImportUnit
	countErr     error
	parseErr     error
	parsePanic   bool
	materialized int
}

func newFakeParser(n int) *fakeParser {
	units := make([]model.ImportUnit, n)
	for i := range units {
		units[i] = model.ImportUnit{
			Doc:        model.Document{"name": fmt.Sprintf("DOC-%03d", i), "title": fmt.Sprintf("Title %d", i)},
			RowIndexes: []int{i + 2},
		}
	}
	return &fakeParser{units: units}
}

func (p *fakeParser) CountUnits(ctx context.Context, job *model.ImportJob) (int, error) {
	if p.countErr != nil {
		return 0, p.countErr
	}
	return len(p.units), nil
}

func (p *fakeParser) MaterializeUnits(ctx context.Context, job *model.ImportJob) ([]model.ImportUnit, error) {
	if p.parsePanic {
		panic("parser exploded")
	}
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	p.materialized++
	return p.units, nil
}

func (p *fakeParser) ReadRows(ctx context.Context, job *model.ImportJob) ([][]string, error) {
	rows := [][]string{{"name", "title"}}
	for _, u := range p.units {
		rows = append(rows, []string{u.Doc.Name(), u.Doc["title"].(string)})
	}
	return rows, nil
}

// fakeWriter fails the units whose name is in fail and calls onWrite before each write.
type fakeWriter struct {
	mu        sync.Mutex
	fail      map[string]bool
	panicOn   map[string]bool
	docStatus int
	onWrite   func(call int)
	calls     int
	written   []string
	submitted []string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{fail: map[string]bool{}, panicOn: map[string]bool{}}
}

func (w *fakeWriter) Write(ctx context.Context, job *model.ImportJob, unit model.ImportUnit) (port.RecordRef, error) {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.mu.Unlock()
	if w.onWrite != nil {
		w.onWrite(call)
	}
	name := unit.Doc.Name()
	if w.panicOn[name] {
		panic("writer exploded on " + name)
	}
	if w.fail[name] {
		return port.RecordRef{}, exception.NewUnitError(nil, "Value missing for title")
	}
	w.mu.Lock()
	w.written = append(w.written, name)
	w.mu.Unlock()
	return port.RecordRef{Name: name, DocStatus: w.docStatus}, nil
}

func (w *fakeWriter) Submit(ctx context.Context, job *model.ImportJob, ref port.RecordRef) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitted = append(w.submitted, ref.Name)
	return nil
}

// recordingPublisher keeps every event.
type recordingPublisher struct {
	mu       sync.Mutex
	progress []model.ProgressEvent
	refresh  []model.RefreshEvent
}

func (p *recordingPublisher) PublishProgress(ctx context.Context, e model.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, e)
	return nil
}

func (p *recordingPublisher) PublishRefresh(ctx context.Context, e model.RefreshEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh = append(p.refresh, e)
	return nil
}

// recordingQueue records tasks without running them.
type recordingQueue struct {
	mu       sync.Mutex
	tasks    []port.Task
	inactive bool
}

func (q *recordingQueue) Enqueue(ctx context.Context, task port.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.JobKey == task.JobKey {
			return port.ErrDuplicateTask
		}
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsEnqueued(jobKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.JobKey == jobKey {
			return true
		}
	}
	return false
}

func (q *recordingQueue) Accepting() bool { return !q.inactive }

type csvExporter struct{}

func (csvExporter) ContentType() string { return "text/plain" }

func (csvExporter) Export(ctx context.Context, w io.Writer, entries []*model.ImportLogEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d:%t\n", e.LogIndex, e.Success); err != nil {
			return err
		}
	}
	return nil
}

type harness struct {
	cfg       *config.Config
	jobs      *repo.InMemoryImportJobRepository
	logs      *repo.InMemoryImportLogRepository
	store     *checkpoint.Store
	parser    *fakeParser
	writer    *fakeWriter
	publisher *recordingPublisher
	runner    *usecase.BatchRunner
	finalizer *usecase.Finalizer
	handler   *usecase.BatchTaskHandler
	explorer  *usecase.SimpleJobExplorer
	queue     port.JobQueue
	operator  *usecase.DefaultJobOperator
}

// newHarness wires the pipeline on in-memory collaborators. With inline set,
// Start runs the whole chain before returning.
func newHarness(t *testing.T, units int, inline bool) *harness {
	t.Helper()
	h := &harness{
		cfg:       config.NewConfig(),
		jobs:      repo.NewInMemoryImportJobRepository(),
		logs:      repo.NewInMemoryImportLogRepository(),
		store:     checkpoint.NewStore(inmemory.NewCache()),
		parser:    newFakeParser(units),
		writer:    newFakeWriter(),
		publisher: &recordingPublisher{},
	}
	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()
	processor := usecase.NewUnitProcessor(h.writer, nil, tracer)
	h.runner = usecase.NewBatchRunner(h.jobs, h.logs, h.store, h.parser, processor, h.publisher, recorder, &h.cfg.Importer.Batch)
	h.finalizer = usecase.NewFinalizer(h.jobs, h.logs, h.store, h.publisher, recorder)
	h.handler = usecase.NewBatchTaskHandler(h.runner, h.finalizer, h.logs, h.store, recorder, tracer)
	h.explorer = usecase.NewSimpleJobExplorer(h.jobs, h.logs, h.parser, csvExporter{})
	if inline {
		h.queue = queue.NewInlineQueue(h.handler.TaskHandler())
	} else {
		h.queue = &recordingQueue{}
	}
	h.operator = usecase.NewDefaultJobOperator(h.jobs, h.logs, h.store, h.queue, h.publisher, recorder, h.cfg)
	return h
}

func (h *harness) createJob(t *testing.T) *model.ImportJob {
	t.Helper()
	job := model.NewImportJob("Article", model.ImportTypeInsert)
	job.ImportFile = "articles.csv"
	require.NoError(t, h.operator.Create(context.Background(), job))
	return job
}

func (h *harness) status(t *testing.T, jobID string) model.JobStatus {
	t.Helper()
	job, err := h.jobs.FindImportJobByID(context.Background(), jobID)
	require.NoError(t, err)
	return job.Status
}

func (h *harness) entries(t *testing.T, jobID string) []*model.ImportLogEntry {
	t.Helper()
	entries, err := h.logs.List(context.Background(), jobID)
	require.NoError(t, err)
	return entries
}

func logIndexes(entries []*model.ImportLogEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e.LogIndex
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

var errBoom = errors.New("boom")

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
