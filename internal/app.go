package internal

import (
	"context"
	"errors"
	"flag"
	"os"

	"pos_console/internal/catalog"
	"pos_console/internal/cli"
	"pos_console/internal/config"
	"pos_console/internal/logging"
	"pos_console/internal/notify"
	"pos_console/internal/posapi"
	"pos_console/internal/sale"
	"pos_console/internal/session"
	"pos_console/internal/storage"
	"pos_console/internal/tables"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Run() error {
	opts, err := cli.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	var runner *cli.Runner

	app := fx.New(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		fx.Supply(opts),
		fx.Decorate(opts.Apply),
		logging.Module(),
		storage.Module(),
		posapi.Module(),
		session.Module(),
		catalog.Module(),
		tables.Module(),
		sale.Module(),
		notify.Module(),
		cli.Module(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
