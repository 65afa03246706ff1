package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// SimpleJobExplorer is the default implementation of JobExplorer.
type SimpleJobExplorer struct {
	jobs     repository.ImportJobRepository
	logs     repository.ImportLogRepository
	rows     port.RowReader
	exporter port.LogExporter
}

// Verify that SimpleJobExplorer implements the JobExplorer interface.
var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(
	jobs repository.ImportJobRepository,
	logs repository.ImportLogRepository,
	rows port.RowReader,
	exporter port.LogExporter,
) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobs: jobs, logs: logs, rows: rows, exporter: exporter}
}

func (e *SimpleJobExplorer) GetImportJob(ctx context.Context, jobID string) (*model.ImportJob, error) {
	return e.jobs.FindImportJobByID(ctx, jobID)
}

func (e *SimpleJobExplorer) GetImportStatus(ctx context.Context, jobID string) (ImportStatus, error) {
	job, err := e.jobs.FindImportJobByID(ctx, jobID)
	if err != nil {
		return ImportStatus{}, err
	}
	counts, err := e.logs.Aggregate(ctx, jobID)
	if err != nil {
		return ImportStatus{}, err
	}
	status := ImportStatus{
		Status:       job.Status,
		SuccessCount: counts.Successes,
		FailureCount: counts.Failures,
	}
	if job.TotalUnits != nil {
		status.TotalRecords = *job.TotalUnits
	}
	return status, nil
}

func (e *SimpleJobExplorer) GetImportLogs(ctx context.Context, jobID string) ([]*model.ImportLogEntry, error) {
	if _, err := e.jobs.FindImportJobByID(ctx, jobID); err != nil {
		return nil, err
	}
	return e.logs.List(ctx, jobID)
}

func (e *SimpleJobExplorer) ExportErroredRows(ctx context.Context, jobID string, w io.Writer) error {
	job, err := e.jobs.FindImportJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	entries, err := e.logs.List(ctx, jobID)
	if err != nil {
		return err
	}

	failed := make(map[int]struct{})
	for _, entry := range entries {
		if entry.Success {
			continue
		}
		for _, idx := range entry.RowIndexes {
			failed[idx] = struct{}{}
		}
	}
	indexes := make([]int, 0, len(failed))
	for idx := range failed {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	rows, err := e.rows.ReadRows(ctx, job)
	if err != nil {
		return exception.NewImportError("job_explorer", fmt.Sprintf("failed to read source rows of job '%s'", jobID), err)
	}
	if len(rows) == 0 {
		return nil
	}

	out := csv.NewWriter(w)
	if err := out.Write(rows[0]); err != nil {
		return err
	}
	for _, idx := range indexes {
		// Row index 1 is the header, so source row idx is rows[idx-1].
		if idx < 2 || idx-1 >= len(rows) {
			continue
		}
		if err := out.Write(rows[idx-1]); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func (e *SimpleJobExplorer) DownloadImportLog(ctx context.Context, jobID string, w io.Writer) (string, error) {
	entries, err := e.GetImportLogs(ctx, jobID)
	if err != nil {
		return "", err
	}
	// Reports list entries in processing order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].LogIndex < entries[j].LogIndex })
	if err := e.exporter.Export(ctx, w, entries); err != nil {
		return "", exception.NewImportError("job_explorer", fmt.Sprintf("failed to export import log of job '%s'", jobID), err)
	}
	return e.exporter.ContentType(), nil
}
