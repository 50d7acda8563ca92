package autoassign

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"order-router/internal/autoassign/worker"
	"order-router/internal/xpkg/config"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"
)

type params struct {
	workerParams worker.Params
	configPath   string
	cfg          *config.Config
}

// Execute starts the auto-assigner
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
	if err := validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	w := worker.NewWorker(newCtx, context.Background(), params.cfg, params.workerParams, mylog)

	if err := w.Run(); err != nil {
		mylog.Action("auto_assigner_failed").Error("Error running auto-assigner", err)
		_ = w.Stop()
		return err
	}
	if !params.workerParams.Once {
		<-newCtx.Done()
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
	}
	return w.Stop()
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("auto-assigner", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	once := fs.Bool("once", false, "Run a single auto-assignment pass and exit")
	schedule := fs.String("schedule", "", "Cron schedule, overrides autoassign.schedule from the config")

	if err := fs.Parse(args); err != nil {
		return nil, xerrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, xerrors.ErrHelp
	}

	return &params{
		workerParams: worker.Params{
			Once:     *once,
			Schedule: *schedule,
		},
		configPath: *configPath,
	}, nil
}

// validateParams loads the config and fills the schedule from it
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	if params.workerParams.Schedule == "" {
		params.workerParams.Schedule = cfg.AutoAssign.Schedule
	}
	if params.workerParams.Schedule == "" {
		return errors.New("auto-assign schedule is empty")
	}
	return nil
}
