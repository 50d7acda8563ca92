package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/xpkg/logger"

	"github.com/robfig/cron/v3"
)

// Runner performs one auto-assignment pass.
type Runner interface {
	AutoAssign(ctx context.Context, changedBy string) (dto.AutoAssignResult, error)
}

// Scheduler triggers auto-assignment on a cron schedule. A tick that fires
// while the previous one is still running is skipped.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	mylog   logger.Logger
}

// New validates spec and registers the job. Standard five field specs and
// descriptors such as "@every 1m" are accepted.
func New(ctx context.Context, spec string, timeout time.Duration, runner Runner, mylog logger.Logger) (*Scheduler, error) {
	cl := cronLogger{mylog: mylog.Action("cron")}
	s := &Scheduler{
		ctx:     ctx,
		runner:  runner,
		timeout: timeout,
		mylog:   mylog,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mylog.Action("scheduler_started").Info("Auto-assign scheduler started")
}

// Stop stops scheduling and waits for a running pass to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.mylog.Action("scheduler_stopped").Info("Auto-assign scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running auto-assign pass: %w", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs a single pass and logs its outcome. A pass skipped
// because another instance holds the lock is not an error.
func (s *Scheduler) RunOnce(ctx context.Context) (dto.AutoAssignResult, error) {
	mylog := s.mylog.Action("auto_assign_tick")

	res, err := s.runner.AutoAssign(ctx, core.ChangedByAutoAssign)
	switch {
	case errors.Is(err, core.ErrAutoAssignRunning):
		mylog.Warn("Skipping pass, another auto-assignment is running")
		return res, nil
	case err != nil:
		mylog.Error("Auto-assign pass failed", err)
		return res, err
	case !res.Enabled:
		mylog.Debug("Auto-assignment is disabled")
	default:
		mylog.Info("Auto-assign pass finished",
			"assigned_count", res.Assigned,
			"unmatched_count", res.Unmatched,
			"error_count", res.ErrorCount(),
		)
	}
	return res, nil
}

type cronLogger struct {
	mylog logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.mylog.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.mylog.Error(msg, err, keysAndValues...)
}
