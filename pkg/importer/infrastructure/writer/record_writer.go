// Package writer stores import units as JSON documents in the import_records table.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/serialization"
)

// RecordEntity is a row of import_records.
type RecordEntity struct {
	SchemaName string    `gorm:"column:schema_name;primaryKey"`
	Name       string    `gorm:"column:name;primaryKey"`
	DocStatus  int       `gorm:"column:doc_status"`
	Data       string    `gorm:"column:data"`
	CreateTime time.Time `gorm:"column:create_time"`
	Modified   time.Time `gorm:"column:modified"`
}

// TableName returns the table name for RecordEntity.
func (RecordEntity) TableName() string {
	return "import_records"
}

// GormRecordWriter implements port.RecordWriter. Statements run in the
// transaction carried by the context, if any.
type GormRecordWriter struct {
	db      *gorm.DB
	schemas *config.SchemasConfig
}

// NewGormRecordWriter creates a GormRecordWriter.
func NewGormRecordWriter(db *gorm.DB, schemas *config.SchemasConfig) *GormRecordWriter {
	return &GormRecordWriter{db: db, schemas: schemas}
}

// Write inserts or updates the record of unit, depending on the import type of job.
func (w *GormRecordWriter) Write(ctx context.Context, job *model.ImportJob, unit model.ImportUnit) (port.RecordRef, error) {
	if err := w.validate(job.ReferenceSchema, unit.Doc); err != nil {
		return port.RecordRef{}, err
	}
	switch job.ImportType {
	case model.ImportTypeInsert:
		return w.insert(ctx, job.ReferenceSchema, unit.Doc)
	case model.ImportTypeUpdate:
		return w.update(ctx, job.ReferenceSchema, unit.Doc)
	}
	return port.RecordRef{}, exception.NewImportErrorf("writer", "unsupported import type '%s'", job.ImportType, exception.ErrInvalidImportType)
}

// validate checks the mandatory fields of schema.
func (w *GormRecordWriter) validate(schema string, doc model.Document) error {
	var messages []string
	for _, field := range w.schemas.Required[schema] {
		if v, ok := doc[field]; !ok || v == nil || v == "" {
			messages = append(messages, fmt.Sprintf("Value missing for %s", field))
		}
	}
	if len(messages) > 0 {
		return exception.NewUnitError(nil, messages...)
	}
	return nil
}

func (w *GormRecordWriter) insert(ctx context.Context, schema string, doc model.Document) (port.RecordRef, error) {
	name := doc.Name()
	if name == "" {
		name = uuid.NewString()
	}
	stored := make(model.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["name"] = name

	data, err := serialization.Marshal("document", stored)
	if err != nil {
		return port.RecordRef{}, err
	}
	now := time.Now()
	entity := &RecordEntity{SchemaName: schema, Name: name, Data: string(data), CreateTime: now, Modified: now}
	if err := gormadapter.DBFromContext(ctx, w.db).Create(entity).Error; err != nil {
		if gormadapter.IsDuplicateKeyError(err) {
			return port.RecordRef{}, exception.NewUnitError(err, fmt.Sprintf("%s %s already exists", schema, name))
		}
		return port.RecordRef{}, exception.NewImportError("writer", fmt.Sprintf("failed to insert %s %s", schema, name), err)
	}
	return port.RecordRef{Name: name, DocStatus: entity.DocStatus}, nil
}

func (w *GormRecordWriter) update(ctx context.Context, schema string, doc model.Document) (port.RecordRef, error) {
	name := doc.Name()
	if name == "" {
		return port.RecordRef{}, exception.NewUnitError(nil, fmt.Sprintf("Value missing for name, required to update %s", schema))
	}
	db := gormadapter.DBFromContext(ctx, w.db)

	var existing RecordEntity
	err := db.Where("schema_name = ? AND name = ?", schema, name).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return port.RecordRef{}, exception.NewUnitError(err, fmt.Sprintf("%s %s not found", schema, name))
	}
	if err != nil {
		return port.RecordRef{}, exception.NewImportError("writer", fmt.Sprintf("failed to load %s %s", schema, name), err)
	}
	if existing.DocStatus != 0 {
		return port.RecordRef{}, exception.NewUnitError(nil, fmt.Sprintf("Cannot update submitted %s %s", schema, name))
	}

	merged, err := serialization.Unmarshal[model.Document]("document", []byte(existing.Data))
	if err != nil {
		return port.RecordRef{}, err
	}
	if merged == nil {
		merged = model.Document{}
	}
	for k, v := range doc {
		merged[k] = v
	}
	data, err := serialization.Marshal("document", merged)
	if err != nil {
		return port.RecordRef{}, err
	}
	err = db.Model(&RecordEntity{}).
		Where("schema_name = ? AND name = ?", schema, name).
		Updates(map[string]interface{}{"data": string(data), "modified": time.Now()}).Error
	if err != nil {
		return port.RecordRef{}, exception.NewImportError("writer", fmt.Sprintf("failed to update %s %s", schema, name), err)
	}
	return port.RecordRef{Name: name, DocStatus: existing.DocStatus}, nil
}

// Submit moves a draft record to doc_status 1.
func (w *GormRecordWriter) Submit(ctx context.Context, job *model.ImportJob, ref port.RecordRef) error {
	result := gormadapter.DBFromContext(ctx, w.db).Model(&RecordEntity{}).
		Where("schema_name = ? AND name = ? AND doc_status = ?", job.ReferenceSchema, ref.Name, 0).
		Updates(map[string]interface{}{"doc_status": 1, "modified": time.Now()})
	if result.Error != nil {
		return exception.NewImportError("writer", fmt.Sprintf("failed to submit %s %s", job.ReferenceSchema, ref.Name), result.Error)
	}
	if result.RowsAffected == 0 {
		return exception.NewUnitError(nil, fmt.Sprintf("Cannot submit %s %s: it is not a draft", job.ReferenceSchema, ref.Name))
	}
	return nil
}

var _ port.RecordWriter = (*GormRecordWriter)(nil)
