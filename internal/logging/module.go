package logging

import (
	"context"
	"os"

	"pos_console/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module opens the log file and tees the application logger into it. The decorator sits
// next to the module rather than inside it so every other module's logger is decorated.
func Module() fx.Option {
	return fx.Options(
		fx.Module(
			"logging",
			fx.Provide(func(cfg config.Config) (*os.File, error) {
				return OpenLogFile(cfg.LogFile)
			}),
			fx.Invoke(func(lc fx.Lifecycle, file *os.File, logger *zap.Logger) {
				if file == nil {
					return
				}
				lc.Append(fx.Hook{
					OnStop: func(_ context.Context) error {
						_ = logger.Sync()
						return file.Close()
					},
				})
			}),
		),
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *os.File) *zap.Logger {
			return AttachFileLogger(base, file, Level(cfg.Debug))
		}),
	)
}
