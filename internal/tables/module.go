package tables

import (
	"pos_console/internal/config"
	"pos_console/internal/posapi"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"tables",
		fx.Provide(func(cfg config.Config, client *posapi.Client, logger *zap.Logger) *Loader {
			return New(cfg.ReadPolicy(), client, logger)
		}),
	)
}
