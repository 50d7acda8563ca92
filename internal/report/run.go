package report

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/xpkg/config"
	"order-router/internal/xpkg/db"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"

	brokermessage "order-router/internal/routing/adapter/broker_message"
	database "order-router/internal/routing/adapter/db"

	"github.com/google/uuid"
)

type params struct {
	configPath string
	storeID    string
	cfg        *config.Config
}

// Execute prints the order report and exits.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	return execute(ctx, mylog, args, os.Stdout)
}

func execute(ctx context.Context, mylog logger.Logger, args []string, out io.Writer) error {
	params, err := parseParams(args)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()

	d, err := db.Start(ctx, params.cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	defer d.Close()

	orders := services.NewOrderService(
		database.NewOrderRepo(d),
		database.NewStoreRepo(d),
		brokermessage.Noop{},
		nil,
		mylog,
	)
	if err := Write(ctx, out, orders, params.storeID); err != nil {
		mylog.Action("report_failed").Error("Failed to build report", err)
		return err
	}
	mylog.Action("report_completed").Debug("Report printed")
	return nil
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	storeID := fs.String("store-id", "", "Limit the report to one store")

	if err := fs.Parse(args); err != nil {
		return nil, xerrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, xerrors.ErrHelp
	}

	return &params{
		configPath: *configPath,
		storeID:    *storeID,
	}, nil
}

func validateParams(params *params) error {
	if params.storeID != "" {
		if _, err := uuid.Parse(params.storeID); err != nil {
			return fmt.Errorf("%w: store-id", core.ErrInvalidID)
		}
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}
