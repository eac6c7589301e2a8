package session

import (
	"context"

	"pos_console/internal/storage"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"session",
		fx.Provide(func(store *storage.Store, auth Authenticator, logger *zap.Logger) *Session {
			return New(context.Background(), store, auth, logger)
		}),
	)
}
