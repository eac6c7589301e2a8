package notify

import (
	"pos_console/internal/config"
	"pos_console/internal/session"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"notify",
		fx.Provide(func(cfg config.Config, sess *session.Session, logger *zap.Logger) (*Listener, error) {
			return NewFromConfig(cfg, sess, logger)
		}),
	)
}
