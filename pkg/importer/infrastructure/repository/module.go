// Package repository selects the repository implementations from configuration.
package repository

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	domain "github.com/tigerroll/surfin-import/pkg/importer/core/domain/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

type repositoryParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB `optional:"true"`
}

type repositoryResult struct {
	fx.Out
	Jobs domain.ImportJobRepository
	Logs domain.ImportLogRepository
}

// NewRepositories returns the repositories named by importer.infrastructure.repository_type.
func NewRepositories(p repositoryParams) repositoryResult {
	if p.Config.Importer.Infrastructure.RepositoryType == "sql" && p.DB != nil {
		logger.Infof("Using SQL import repositories.")
		return repositoryResult{
			Jobs: sqlrepo.NewSQLImportJobRepository(p.DB),
			Logs: sqlrepo.NewSQLImportLogRepository(p.DB),
		}
	}
	logger.Infof("Using in-memory import repositories.")
	return repositoryResult{
		Jobs: inmemory.NewInMemoryImportJobRepository(),
		Logs: inmemory.NewInMemoryImportLogRepository(),
	}
}

// Module provides domain.ImportJobRepository and domain.ImportLogRepository.
var Module = fx.Options(
	fx.Provide(NewRepositories),
)
