package usecase

import (
	"context"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// UnitResult is the outcome of one unit. It is turned into an import log entry by the batch runner.
type UnitResult struct {
	Success   bool
	DocName   string
	Messages  []string
	Exception string
}

// UnitProcessor writes one unit in its own transaction. A failure rolls back
// that unit only and is returned as a failed UnitResult, never as an error.
type UnitProcessor struct {
	writer     port.RecordWriter
	transactor port.Transactor
	tracer     metrics.Tracer
}

// NewUnitProcessor creates a UnitProcessor. A nil transactor runs writes without a transaction.
func NewUnitProcessor(writer port.RecordWriter, transactor port.Transactor, tracer metrics.Tracer) *UnitProcessor {
	if transactor == nil {
		transactor = noTransaction{}
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &UnitProcessor{writer: writer, transactor: transactor, tracer: tracer}
}

// Process writes unit and, if the job asks for it, submits the record when it is still a draft.
func (p *UnitProcessor) Process(ctx context.Context, job *model.ImportJob, unit model.ImportUnit) (result UnitResult) {
	ctx, end := p.tracer.StartSpan(ctx, "import.unit", map[string]interface{}{
		"job_id": job.ID,
		"rows":   len(unit.RowIndexes),
	})
	defer end()

	defer func() {
		if r := recover(); r != nil {
			err := exception.PanicError("unit_processor", r)
			logger.Errorf("Unit at rows %v of job '%s' panicked: %v", unit.RowIndexes, job.ID, r)
			p.tracer.RecordError(ctx, "unit_processor", err)
			result = failedResult(err)
		}
	}()

	var ref port.RecordRef
	err := p.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ref, err = p.writer.Write(ctx, job, unit)
		if err != nil {
			return err
		}
		if job.SubmitAfterImport && ref.DocStatus == 0 {
			return p.writer.Submit(ctx, job, ref)
		}
		return nil
	})
	if err != nil {
		logger.Debugf("Unit at rows %v of job '%s' failed: %v", unit.RowIndexes, job.ID, err)
		p.tracer.RecordError(ctx, "unit_processor", err)
		return failedResult(err)
	}
	return UnitResult{Success: true, DocName: ref.Name}
}

func failedResult(err error) UnitResult {
	return UnitResult{
		Success:   false,
		Messages:  exception.UserMessages(err),
		Exception: exception.Trace(err),
	}
}

type noTransaction struct{}

func (noTransaction) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
