package order

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"order-router/internal/order/api/http"
	"order-router/internal/xpkg/config"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"

	"golang.org/x/sync/errgroup"
)

type params struct {
	serverParams http.Params
	configPath   string
	cfg          *config.Config
}

// Execute starts the order service
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	server := http.NewServer(newCtx, context.Background(), params.cfg, params.serverParams, mylog)

	return serve(newCtx, server, mylog)
}

type runStopper interface {
	Run() error
	Stop(ctx context.Context) error
}

// serve runs srv until ctx ends or Run returns, then stops it once.
func serve(ctx context.Context, srv runStopper, mylog logger.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Action("order_service_failed").Error("Server failed unexpectedly", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		}
		return srv.Stop(context.Background())
	})

	return g.Wait()
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("order-service", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", 3000, "Port to run the order service")
	migrate := fs.Bool("migrate", false, "Apply database migrations on start")

	if err := fs.Parse(args); err != nil {
		return nil, xerrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, xerrors.ErrHelp
	}

	return &params{
		serverParams: http.Params{
			Port:    *port,
			Migrate: *migrate,
		},
		configPath: *configPath,
	}, nil
}

// validateParams loads the config and checks the flags
func validateParams(params *params) error {
	if params.serverParams.Port <= 0 || params.serverParams.Port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", params.serverParams.Port)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}
