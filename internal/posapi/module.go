package posapi

import (
	"pos_console/internal/session"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"posapi",
		fx.Provide(
			NewClient,
			fx.Annotate(NewAuthClient, fx.As(new(session.Authenticator))),
		),
	)
}
