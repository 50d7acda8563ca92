package notsub

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"order-router/internal/notsub/adapter/consumer"
	"order-router/internal/xpkg/config"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"

	brokermessage "order-router/internal/routing/adapter/broker_message"

	"golang.org/x/sync/errgroup"
)

const prefetch = 10

type params struct {
	configPath string
	queue      string
	cfg        *config.Config
}

// Execute starts the notification subscriber
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
	mylog.Action("command_parse_completed").Debug("Received params", "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	mb, err := brokermessage.New(newCtx, params.cfg.RMQ, mylog, prefetch)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	notsub := consumer.NewNotification(newCtx, mb, params.queue, mylog)
	return serve(newCtx, notsub, mylog)
}

type runStopper interface {
	Run() error
	Stop() error
}

// serve runs the subscriber and stops it when ctx ends or Run fails.
// Run returns nil only once ctx is done.
func serve(ctx context.Context, sub runStopper, mylog logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sub.Run(); err != nil {
			mylog.Action("notsub_run_failed").Error("Notification subscriber stopped with error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return sub.Stop()
	})

	return g.Wait()
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("notification-subscriber", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	queue := fs.String("queue", "", "Queue to bind, overrides rabbitmq.queue from the config")

	if err := fs.Parse(args); err != nil {
		return nil, xerrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, xerrors.ErrHelp
	}

	return &params{
		configPath: *configPath,
		queue:      *queue,
	}, nil
}

// validateParams loads the config. The subscriber needs rabbitmq enabled.
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if !cfg.RMQ.Enabled {
		return errors.New("rabbitmq is disabled in the config, nothing to subscribe to")
	}
	if params.queue == "" {
		params.queue = cfg.RMQ.Queue
	}
	if params.queue == "" {
		return errors.New("queue name is empty")
	}
	params.cfg = cfg
	return nil
}
