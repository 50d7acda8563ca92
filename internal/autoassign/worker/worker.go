package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-router/internal/autoassign/scheduler"
	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/xpkg/config"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"

	brokermessage "order-router/internal/routing/adapter/broker_message"
	database "order-router/internal/routing/adapter/db"
)

type Params struct {
	Once     bool
	Schedule string
}

// Worker runs auto-assignment against postgres, either once or on a schedule.
type Worker struct {
	cfg    *config.Config
	params Params
	mylog  logger.Logger

	db        *db.DB
	mb        core.IPublisher
	scheduler *scheduler.Scheduler

	ctx    context.Context
	appCtx context.Context

	mu sync.Mutex
}

func NewWorker(ctx, appCtx context.Context, cfg *config.Config, params Params, mylog logger.Logger) *Worker {
	return &Worker{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		params: params,
		mylog:  mylog,
	}
}

// Run connects the dependencies and either performs a single pass or starts
// the scheduler. In scheduled mode it returns once the scheduler is running.
func (w *Worker) Run() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	mylog := w.mylog.Action("run-auto-assigner")

	if err := w.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := w.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}

	assignService := services.NewAssignService(
		database.NewOrderRepo(w.db),
		database.NewStoreRepo(w.db),
		database.NewSettingsRepo(w.db),
		database.NewLocker(w.db, core.AutoAssignLockKey),
		w.mb,
		nil,
		w.mylog,
	)

	s, err := scheduler.New(w.ctx, w.params.Schedule, core.WaitTime*time.Second, assignService, w.mylog)
	if err != nil {
		return err
	}
	w.scheduler = s

	if w.params.Once {
		ctx, cancel := context.WithTimeout(w.ctx, core.WaitTime*time.Second)
		defer cancel()
		_, err := s.RunOnce(ctx)
		return err
	}

	s.Start()
	mylog.WithGroup("details").With("schedule", w.params.Schedule).Info("auto-assigner is running")
	return nil
}

func (w *Worker) initializeDatabase() error {
	d, err := db.Start(w.appCtx, w.cfg.DB, w.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	w.db = d
	return nil
}

func (w *Worker) initializeRabbitMQ() error {
	if !w.cfg.RMQ.Enabled {
		w.mb = brokermessage.Noop{}
		return nil
	}
	mb, err := brokermessage.New(w.ctx, w.cfg.RMQ, w.mylog, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	w.mb = mb
	w.mylog.Action("mb_connected").Info("Successful message broker connection")
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	if w.scheduler != nil && !w.params.Once {
		ctx, cancel := context.WithTimeout(w.appCtx, core.WaitTime*time.Second)
		defer cancel()
		if err := w.scheduler.Stop(ctx); err != nil {
			w.mylog.Action("scheduler_stop_failed").Error("Auto-assign pass did not finish in time", err)
		}
	}

	if w.mb != nil {
		if err := w.mb.Close(); err != nil {
			w.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
		}
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		w.mylog.Action("db_closed").Info("Database closed")
	}

	w.mylog.Action("graceful_shutdown_completed").Info("Successfully shut down")
	return nil
}
