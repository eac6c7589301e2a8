package storage

import (
	"context"

	"pos_console/internal/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"storage",
		fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*Store, error) {
			store, err := Open(cfg.StoragePath)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return store.Close()
				},
			})
			return store, nil
		}),
	)
}
