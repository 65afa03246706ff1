package main

import (
	"context"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/adapter/database/migration"
	usecase "github.com/tigerroll/surfin-import/pkg/importer/core/application/usecase"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/export"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/metrics"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/notification"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/parser"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/queue"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/repository"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/source"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/tracing"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/writer"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// GetApplicationOptions builds the uber-fx options of the importer.
// Migrations are invoked before the import runner so that the tables exist when the first batch starts.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, req importRequest) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		req,
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, gormadapter.Module)
	options = append(options, migration.Module)
	options = append(options, repository.Module)
	options = append(options, cache.Module)
	options = append(options, queue.Module)
	options = append(options, notification.Module)
	options = append(options, metrics.Module)
	options = append(options, tracing.Module)
	options = append(options, source.Module)
	options = append(options, parser.Module)
	options = append(options, writer.Module)
	options = append(options, export.Module)
	options = append(options, usecase.Module)
	options = append(options, fx.Invoke(fx.Annotate(startImport, fx.ParamTags("", "", "", "", "", "", "", `name:"appCtx"`))))

	return options
}
