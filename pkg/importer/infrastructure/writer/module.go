package writer

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
)

// Module provides port.RecordWriter. The transaction each unit runs in comes
// from the database adapter's port.Transactor.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewGormRecordWriter, fx.As(new(port.RecordWriter)))),
)
