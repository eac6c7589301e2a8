package sale

import (
	"pos_console/internal/config"
	"pos_console/internal/posapi"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"sale",
		fx.Provide(
			func(client *posapi.Client, logger *zap.Logger) *Composer {
				return NewComposer(client, logger)
			},
			func(cfg config.Config, client *posapi.Client, logger *zap.Logger) *Ledger {
				return NewLedger(cfg.ReadPolicy(), client, logger)
			},
		),
	)
}
