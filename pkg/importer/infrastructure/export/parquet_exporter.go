// Package export renders the import log of a job as a downloadable report.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/serialization"
)

// parallelism is the number of goroutines the parquet writer marshals with.
const parallelism = 4

// LogRow is one import log entry as written to a parquet report.
type LogRow struct {
	LogIndex   int32  `parquet:"name=log_index,type=INT32"`
	Success    bool   `parquet:"name=success,type=BOOLEAN"`
	DocName    string `parquet:"name=doc_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	Messages   string `parquet:"name=messages,type=BYTE_ARRAY,convertedtype=UTF8"`
	Exception  string `parquet:"name=exception,type=BYTE_ARRAY,convertedtype=UTF8"`
	RowIndexes string `parquet:"name=row_indexes,type=BYTE_ARRAY,convertedtype=UTF8"`
	CreateTime int64  `parquet:"name=create_time,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
}

// ParquetLogExporter writes the import log as a single parquet file.
type ParquetLogExporter struct {
	codec parquet.CompressionCodec
}

// NewParquetLogExporter creates a ParquetLogExporter using the named compression ("snappy", "gzip", "none").
func NewParquetLogExporter(compression string) (*ParquetLogExporter, error) {
	codec, err := getCompressionCodec(compression)
	if err != nil {
		return nil, exception.NewImportError("export", fmt.Sprintf("invalid compression type '%s'", compression), err)
	}
	return &ParquetLogExporter{codec: codec}, nil
}

func (e *ParquetLogExporter) ContentType() string {
	return "application/vnd.apache.parquet"
}

// Export writes entries in their given order. The file is built in memory and
// copied to w only once it is complete.
func (e *ParquetLogExporter) Export(ctx context.Context, w io.Writer, entries []*model.ImportLogEntry) error {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(LogRow), parallelism)
	if err != nil {
		return exception.NewImportError("export", "failed to create parquet writer", err)
	}
	pw.CompressionType = e.codec

	var multiErr *multierror.Error
	for _, entry := range entries {
		if ctx.Err() != nil {
			multiErr = multierror.Append(multiErr, ctx.Err())
			break
		}
		row, err := toLogRow(entry)
		if err != nil {
			multiErr = multierror.Append(multiErr, err)
			break
		}
		if err := pw.Write(row); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewImportError("export", fmt.Sprintf("failed to write log entry %d", entry.LogIndex), err))
			break
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Parquet writer panicked during WriteStop: %v", r)
				multiErr = multierror.Append(multiErr, exception.NewImportError("export", fmt.Sprintf("parquet writer panicked during WriteStop: %v", r), nil))
			}
		}()
		if err := pw.WriteStop(); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewImportError("export", "failed to finalize parquet file", err))
		}
	}()
	if err := multiErr.ErrorOrNil(); err != nil {
		return err
	}

	if _, err := io.Copy(w, buf); err != nil {
		return exception.NewImportError("export", "failed to write parquet report", err)
	}
	logger.Debugf("Exported %d import log entries as parquet (%d bytes).", len(entries), buf.Len())
	return nil
}

func toLogRow(entry *model.ImportLogEntry) (LogRow, error) {
	messages, err := serialization.MarshalStrings(entry.Messages)
	if err != nil {
		return LogRow{}, err
	}
	rows, err := serialization.MarshalInts(entry.RowIndexes)
	if err != nil {
		return LogRow{}, err
	}
	return LogRow{
		LogIndex:   int32(entry.LogIndex),
		Success:    entry.Success,
		DocName:    entry.DocName,
		Messages:   messages,
		Exception:  entry.Exception,
		RowIndexes: rows,
		CreateTime: entry.CreateTime.UnixMilli(),
	}, nil
}

// getCompressionCodec returns the parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

var _ port.LogExporter = (*ParquetLogExporter)(nil)
