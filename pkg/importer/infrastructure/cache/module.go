// Package cache selects the port.Cache implementation from configuration.
package cache

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/inmemory"
	sqlcache "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/sql"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

type cacheParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB `optional:"true"`
}

// NewCache returns the cache named by importer.infrastructure.cache_type.
// The in-memory cache is used when no database connection is available.
func NewCache(p cacheParams) port.Cache {
	if p.Config.Importer.Infrastructure.CacheType == "sql" && p.DB != nil {
		logger.Infof("Using SQL checkpoint cache.")
		return sqlcache.NewCache(p.DB)
	}
	logger.Infof("Using in-memory checkpoint cache.")
	return inmemory.NewCache()
}

// Module provides the port.Cache and the checkpoint.Store built on it.
var Module = fx.Options(
	fx.Provide(NewCache),
	fx.Provide(checkpoint.NewStore),
)
