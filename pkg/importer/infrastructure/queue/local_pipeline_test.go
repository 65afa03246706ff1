package queue_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/adapter/database/migration"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/usecase"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	sqlcache "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/sql"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/notification"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/parser"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/queue"
	sqlrepo "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/source"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/writer"
)

// gatedParser holds the first count pass until gate is closed.
type gatedParser struct {
	port.FileParser
	gate    chan struct{}
	entered chan struct{}
}

func (p *gatedParser) CountUnits(ctx context.Context, job *model.ImportJob) (int, error) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.gate
	return p.FileParser.CountUnits(ctx, job)
}

type pipeline struct {
	jobs     *sqlrepo.SQLImportJobRepository
	logs     *sqlrepo.SQLImportLogRepository
	store    *checkpoint.Store
	parser   *gatedParser
	queue    *queue.LocalQueue
	operator *usecase.DefaultJobOperator
}

func newPipeline(t *testing.T, units int) *pipeline {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.NewMigrator(db).Up(context.Background()))

	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("name,title\n")
	for i := 0; i < units; i++ {
		fmt.Fprintf(&sb, "DOC-%03d,Title %d\n", i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "articles.csv"), []byte(sb.String()), 0o600))

	cfg := config.NewConfig()
	cfg.Importer.Sources.BaseDir = dir
	cfg.Importer.Queue.Workers = map[string]int{"long": 2}

	p := &pipeline{
		jobs:  sqlrepo.NewSQLImportJobRepository(db),
		logs:  sqlrepo.NewSQLImportLogRepository(db),
		store: checkpoint.NewStore(sqlcache.NewCache(db)),
		parser: &gatedParser{
			FileParser: parser.NewCSVParser(source.NewOpener(cfg.Importer.Sources, nil)),
			gate:       make(chan struct{}),
			entered:    make(chan struct{}, 1),
		},
	}
	publisher := notification.NewLogPublisher()
	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()

	processor := usecase.NewUnitProcessor(writer.NewGormRecordWriter(db, &cfg.Importer.Schemas), gormadapter.NewTransactor(db), tracer)
	runner := usecase.NewBatchRunner(p.jobs, p.logs, p.store, p.parser, processor, publisher, recorder, &cfg.Importer.Batch)
	finalizer := usecase.NewFinalizer(p.jobs, p.logs, p.store, publisher, recorder)
	handler := usecase.NewBatchTaskHandler(runner, finalizer, p.logs, p.store, recorder, tracer)

	p.queue = queue.NewLocalQueue(handler.TaskHandler(), cfg.Importer.Queue, cfg.Importer.Batch.Queue)
	require.NoError(t, p.queue.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.queue.Stop(ctx)
	})
	p.operator = usecase.NewDefaultJobOperator(p.jobs, p.logs, p.store, p.queue, publisher, recorder, cfg)
	return p
}

func TestLocalQueue_ImportsCSVIntoSQLite(t *testing.T) {
	p := newPipeline(t, 10)
	ctx := context.Background()

	job := model.NewImportJob("Article", model.ImportTypeInsert)
	job.ImportFile = "articles.csv"
	require.NoError(t, p.operator.Create(ctx, job))

	started, err := p.operator.Start(ctx, job.ID, 4)
	require.NoError(t, err)
	require.True(t, started)

	select {
	case <-p.parser.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("chain did not reach the count pass")
	}
	assert.True(t, p.queue.IsEnqueued(model.JobKey(job.ID)))
	started, err = p.operator.Start(ctx, job.ID, 4)
	require.NoError(t, err)
	assert.False(t, started, "a job with a pending chain is not enqueued twice")

	close(p.parser.gate)
	require.Eventually(t, func() bool {
		return !p.queue.IsEnqueued(model.JobKey(job.ID))
	}, 10*time.Second, 20*time.Millisecond)

	stored, err := p.jobs.FindImportJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, stored.Status)
	require.NotNil(t, stored.TotalUnits)
	assert.Equal(t, 10, *stored.TotalUnits)

	counts, err := p.logs.Aggregate(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LogCounts{Successes: 10, Failures: 0}, counts)

	entries, err := p.logs.List(ctx, job.ID)
	require.NoError(t, err)
	indexes := make(map[int]bool, len(entries))
	for _, e := range entries {
		indexes[e.LogIndex] = true
	}
	assert.Len(t, indexes, 10)
	for i := 0; i < 10; i++ {
		assert.True(t, indexes[i], "log index %d", i)
	}

	_, ok, err := p.store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "checkpoint is cleared once the job is finalized")
}
