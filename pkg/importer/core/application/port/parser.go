// Package port defines the interfaces through which the importer core talks to
// its collaborators: the file parser, the record writer, the job queue, the
// checkpoint cache and the event channel.
package port

import (
	"context"
	"io"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// FileParser turns the source of a job into import units.
type FileParser interface {
	// CountUnits returns the number of units without materializing them.
	CountUnits(ctx context.Context, job *model.ImportJob) (int, error)
	// MaterializeUnits returns every unit of the job in source order.
	MaterializeUnits(ctx context.Context, job *model.ImportJob) ([]model.ImportUnit, error)
}

// RowReader returns the raw rows of a job's source. Row 0 is the header row;
// row i corresponds to row index i+1 as recorded in import log entries.
type RowReader interface {
	ReadRows(ctx context.Context, job *model.ImportJob) ([][]string, error)
}

// SourceOpener opens the location named by ImportJob.Source.
type SourceOpener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}
