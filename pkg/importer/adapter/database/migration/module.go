package migration

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// RunOnStart applies pending migrations when the application starts, if
// importer.infrastructure.migrate_on_start is set.
func RunOnStart(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB) {
	if !cfg.Importer.Infrastructure.MigrateOnStart {
		logger.Debugf("Skipping migrations on start.")
		return
	}
	m := NewMigrator(db)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}

// Module runs the embedded migrations on application start.
var Module = fx.Options(
	fx.Invoke(RunOnStart),
)
