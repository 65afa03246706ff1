package config

import "go.uber.org/fx"

// NewBatchConfigProvider extracts *BatchConfig so the use cases need not depend on the whole Config.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Importer.Batch
}

// NewSchemasConfigProvider extracts *SchemasConfig.
func NewSchemasConfigProvider(cfg *Config) *SchemasConfig {
	return &cfg.Importer.Schemas
}

// Module provides *Config and the sub-configurations derived from it.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewBatchConfigProvider),
	fx.Provide(NewSchemasConfigProvider),
	fx.Provide(fx.Annotate(NewOsEnvironmentExpander, fx.As(new(EnvironmentExpander)))),
)
