package port

import (
	"context"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// RecordRef identifies a record written by a RecordWriter.
type RecordRef struct {
	Name      string
	DocStatus int
}

// RecordWriter creates or updates the record of one unit.
// Errors are unit-level: they are logged against the unit and do not stop the batch.
type RecordWriter interface {
	Write(ctx context.Context, job *model.ImportJob, unit model.ImportUnit) (RecordRef, error)
	// Submit moves a draft record (DocStatus 0) to the submitted state.
	Submit(ctx context.Context, job *model.ImportJob, ref RecordRef) error
}

// Transactor runs fn atomically. Writes made through the context passed to fn
// are rolled back if fn returns an error.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
