package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 5 * time.Minute
)

// JobRecorder receives one observation per finished job run.
type JobRecorder interface {
	ObserveJob(job string, took time.Duration, finishedAt time.Time, err error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  JobRecorder
	Interval time.Duration
	// JobTimeout bounds each job run; zero uses five minutes.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the cluster lock.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  JobRecorder
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		timeout:  params.JobTimeout,
		now:      time.Now,
	}
	if params.Registry != nil {
		s.jobs = params.Registry.Jobs()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.timeout <= 0 {
		s.timeout = defaultJobTimeout
	}
	return s, nil
}

// RunOnce executes a single cycle and returns the combined job failures, so a one-shot
// invocation exits non-zero when any job failed.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx)
}

// Run executes a cycle immediately and then on every tick until ctx is canceled. Job
// failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.cycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		// release must outlive a canceled cycle context
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "cron lock release failed")
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	start := s.now()
	runCtx, cancel := context.WithTimeout(jobCtx, s.timeout)
	err := job.Run(runCtx)
	cancel()
	finished := s.now()
	took := finished.Sub(start)

	if s.metrics != nil {
		s.metrics.ObserveJob(name, took, finished, err)
	}
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(jobCtx, "cron job completed")
	return nil
}
