package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval. Cycles are serialized
// across replicas by Lock; a replica that loses the race skips the cycle.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  jobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     params.Registry.Jobs(),
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run fires a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle runs each job in order. A failing job is logged and counted but
// does not stop the jobs after it.
func (s *Service) runCycle(ctx context.Context) error {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !acquired {
		s.logg.Debug(ctx, "cron cycle skipped, lock held elsewhere")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	for _, job := range s.jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	started := s.now()
	err := job.Run(s.logg.WithField(ctx, "job", name))
	took := s.now().Sub(started)

	if s.metrics != nil {
		s.metrics.ObserveRun(name, took, err)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "duration_ms": took.Milliseconds()})
	if err != nil {
		s.logg.Error(logCtx, "cron job failed", err)
		return
	}
	s.logg.Debug(logCtx, "cron job finished")
}
