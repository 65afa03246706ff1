package export

import (
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// NewLogExporter selects the exporter named by exports.log_format.
func NewLogExporter(cfg *config.Config) (port.LogExporter, error) {
	exports := cfg.Importer.Exports
	switch strings.ToLower(exports.LogFormat) {
	case "parquet", "":
		return NewParquetLogExporter(exports.Compression)
	case "csv":
		return NewCSVLogExporter(), nil
	}
	return nil, exception.NewImportError("export", fmt.Sprintf("unsupported log format '%s'", exports.LogFormat), nil)
}

// Module provides port.LogExporter.
var Module = fx.Options(
	fx.Provide(NewLogExporter),
)
