package parser

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
)

// Module provides the CSV parser as port.FileParser and port.RowReader.
var Module = fx.Options(
	fx.Provide(NewCSVParser),
	fx.Provide(func(p *CSVParser) port.FileParser { return p }),
	fx.Provide(func(p *CSVParser) port.RowReader { return p }),
)
