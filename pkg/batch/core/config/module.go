package config

import "go.uber.org/fx"

// NewBatchConfigProvider exposes the batch sizing section on its own.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Bulkop.Batch
}

// NewWorkerConfigProvider exposes the worker pool section on its own.
func NewWorkerConfigProvider(cfg *Config) *WorkerConfig {
	return &cfg.Bulkop.Worker
}

// Module provides configuration-related components to fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewBatchConfigProvider),
	fx.Provide(NewWorkerConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
