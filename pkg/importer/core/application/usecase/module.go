package usecase

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
)

type unitProcessorParams struct {
	fx.In
	Writer     port.RecordWriter
	Transactor port.Transactor `optional:"true"`
	Tracer     metrics.Tracer
}

func newUnitProcessor(p unitProcessorParams) *UnitProcessor {
	return NewUnitProcessor(p.Writer, p.Transactor, p.Tracer)
}

// Module is the Fx module for the batch pipeline, JobOperator and JobExplorer.
// It provides the port.TaskHandler the job queue runs.
var Module = fx.Options(
	fx.Provide(newUnitProcessor),
	fx.Provide(NewBatchRunner),
	fx.Provide(NewFinalizer),
	fx.Provide(NewBatchTaskHandler),
	fx.Provide(func(h *BatchTaskHandler) port.TaskHandler { return h.TaskHandler() }),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
)
