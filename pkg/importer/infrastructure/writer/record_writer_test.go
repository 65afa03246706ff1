package writer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/adapter/database/migration"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/usecase"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/writer"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.NewMigrator(db).Up(context.Background()))
	return db
}

func schemas() *config.SchemasConfig {
	return &config.SchemasConfig{Required: map[string][]string{"Article": {"title"}}}
}

func unit(doc model.Document) model.ImportUnit {
	return model.ImportUnit{Doc: doc, RowIndexes: []int{2}}
}

func load(t *testing.T, db *gorm.DB, name string) writer.RecordEntity {
	t.Helper()
	var e writer.RecordEntity
	require.NoError(t, db.Where("schema_name = ? AND name = ?", "Article", name).Take(&e).Error)
	return e
}

func TestGormRecordWriter_InsertAndSubmit(t *testing.T) {
	db := setupSQLite(t)
	w := writer.NewGormRecordWriter(db, schemas())
	ctx := context.Background()
	job := model.NewImportJob("Article", model.ImportTypeInsert)

	ref, err := w.Write(ctx, job, unit(model.Document{"name": "A-1", "title": "Hello"}))
	require.NoError(t, err)
	assert.Equal(t, port.RecordRef{Name: "A-1", DocStatus: 0}, ref)

	require.NoError(t, w.Submit(ctx, job, ref))
	assert.Equal(t, 1, load(t, db, "A-1").DocStatus)

	err = w.Submit(ctx, job, ref)
	var ue *exception.UnitError
	require.True(t, errors.As(err, &ue))

	_, err = w.Write(ctx, job, unit(model.Document{"name": "A-1", "title": "Again"}))
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"Article A-1 already exists"}, ue.Messages)
}

func TestGormRecordWriter_GeneratesName(t *testing.T) {
	db := setupSQLite(t)
	w := writer.NewGormRecordWriter(db, schemas())
	job := model.NewImportJob("Article", model.ImportTypeInsert)

	ref, err := w.Write(context.Background(), job, unit(model.Document{"title": "Untitled"}))
	require.NoError(t, err)
	assert.NotEmpty(t, ref.Name)
	assert.Contains(t, load(t, db, ref.Name).Data, ref.Name)
}

func TestGormRecordWriter_RequiredFields(t *testing.T) {
	db := setupSQLite(t)
	w := writer.NewGormRecordWriter(db, schemas())
	job := model.NewImportJob("Article", model.ImportTypeInsert)

	_, err := w.Write(context.Background(), job, unit(model.Document{"name": "A-2"}))
	var ue *exception.UnitError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"Value missing for title"}, ue.Messages)
}

func TestGormRecordWriter_Update(t *testing.T) {
	db := setupSQLite(t)
	w := writer.NewGormRecordWriter(db, schemas())
	ctx := context.Background()

	insert := model.NewImportJob("Article", model.ImportTypeInsert)
	_, err := w.Write(ctx, insert, unit(model.Document{"name": "A-3", "title": "Old", "body": "kept"}))
	require.NoError(t, err)

	update := model.NewImportJob("Article", model.ImportTypeUpdate)
	_, err = w.Write(ctx, update, unit(model.Document{"name": "A-3", "title": "New"}))
	require.NoError(t, err)
	data := load(t, db, "A-3").Data
	assert.Contains(t, data, `"title":"New"`)
	assert.Contains(t, data, `"body":"kept"`)

	var ue *exception.UnitError
	_, err = w.Write(ctx, update, unit(model.Document{"name": "A-404", "title": "x"}))
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"Article A-404 not found"}, ue.Messages)

	_, err = w.Write(ctx, update, unit(model.Document{"title": "x"}))
	require.True(t, errors.As(err, &ue))
}

// A unit whose submit fails leaves no record behind.
func TestGormRecordWriter_UnitTransactionRollsBack(t *testing.T) {
	db := setupSQLite(t)
	w := writer.NewGormRecordWriter(db, schemas())
	ctx := context.Background()
	job := model.NewImportJob("Article", model.ImportTypeInsert)
	job.SubmitAfterImport = true

	failing := &failingSubmit{GormRecordWriter: w}
	processor := usecase.NewUnitProcessor(failing, gormadapter.NewTransactor(db), metrics.NewNoOpTracer())

	result := processor.Process(ctx, job, unit(model.Document{"name": "A-5", "title": "Draft"}))
	assert.False(t, result.Success)
	assert.Equal(t, []string{"submit rejected"}, result.Messages)

	var count int64
	require.NoError(t, db.Model(&writer.RecordEntity{}).Count(&count).Error)
	assert.Zero(t, count)

	result = processor.Process(ctx, job, unit(model.Document{"name": "A-6", "title": "Draft"}))
	assert.False(t, result.Success)
}

type failingSubmit struct {
	*writer.GormRecordWriter
}

func (f *failingSubmit) Submit(ctx context.Context, job *model.ImportJob, ref port.RecordRef) error {
	return exception.NewUnitError(nil, "submit rejected")
}
