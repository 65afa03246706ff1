package gorm

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
)

// NewDefaultConnection opens the connection named by importer.infrastructure.db_ref
// and closes every provider connection when the application stops.
func NewDefaultConnection(lc fx.Lifecycle, cfg *config.Config, provider *Provider) (*gorm.DB, error) {
	db, err := provider.GetConnection(cfg.Importer.Infrastructure.DBRef)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.CloseAll()
		},
	})
	return db, nil
}

// Module provides the connection provider, the default *gorm.DB and a port.Transactor over it.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(NewDefaultConnection),
	fx.Provide(fx.Annotate(NewTransactor, fx.As(new(port.Transactor)))),
)
