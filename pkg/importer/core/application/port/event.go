package port

import (
	"context"
	"io"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// EventPublisher delivers progress and refresh events. Delivery is best effort.
type EventPublisher interface {
	PublishProgress(ctx context.Context, event model.ProgressEvent) error
	PublishRefresh(ctx context.Context, event model.RefreshEvent) error
}

// LogExporter writes the import log of a job in a downloadable format.
type LogExporter interface {
	ContentType() string
	Export(ctx context.Context, w io.Writer, entries []*model.ImportLogEntry) error
}
