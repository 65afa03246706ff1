package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

var csvHeader = []string{"log_index", "success", "doc_name", "messages", "exception", "row_indexes", "create_time"}

// CSVLogExporter writes the import log as CSV with a header row.
type CSVLogExporter struct{}

// NewCSVLogExporter creates a CSVLogExporter.
func NewCSVLogExporter() *CSVLogExporter {
	return &CSVLogExporter{}
}

func (e *CSVLogExporter) ContentType() string {
	return "text/csv"
}

// Export writes one line per entry. Messages are joined with newlines and row
// indexes with commas.
func (e *CSVLogExporter) Export(ctx context.Context, w io.Writer, entries []*model.ImportLogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return exception.NewImportError("export", "failed to write csv header", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows := make([]string, len(entry.RowIndexes))
		for i, idx := range entry.RowIndexes {
			rows[i] = strconv.Itoa(idx)
		}
		record := []string{
			strconv.Itoa(entry.LogIndex),
			strconv.FormatBool(entry.Success),
			entry.DocName,
			strings.Join(entry.Messages, "\n"),
			entry.Exception,
			strings.Join(rows, ","),
			entry.CreateTime.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return exception.NewImportErrorf("export", "failed to write log entry %d", entry.LogIndex, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return exception.NewImportError("export", "failed to flush csv report", err)
	}
	return nil
}

var _ port.LogExporter = (*CSVLogExporter)(nil)
