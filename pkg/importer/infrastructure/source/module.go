package source

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
)

// NewSourceOpener creates the Opener and closes it when the application stops.
func NewSourceOpener(lc fx.Lifecycle, cfg *config.Config) port.SourceOpener {
	opener := NewOpener(cfg.Importer.Sources, nil)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return opener.Close()
		},
	})
	return opener
}

// Module provides port.SourceOpener.
var Module = fx.Options(
	fx.Provide(NewSourceOpener),
)
