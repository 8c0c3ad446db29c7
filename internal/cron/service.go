package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Tick is how often the loop wakes up; periodic jobs are only run once
	// their own interval has elapsed.
	Tick  time.Duration
	Clock func() time.Time
}

// Service executes registered cron jobs, each under its own lease.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
	lastRun  map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{names: make(map[string]struct{})}
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      clock,
		lastRun:  make(map[string]time.Time),
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	for _, job := range s.dueJobs() {
		if err := s.runLeased(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runLeased(ctx context.Context, job Job) error {
	locked, err := s.lock.Acquire(ctx, job.Name())
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		skipCtx := s.logg.WithField(ctx, "job", job.Name())
		if reporter, ok := s.lock.(holderReporter); ok {
			if holder, holderErr := reporter.Holder(ctx, job.Name()); holderErr == nil && holder != "" {
				skipCtx = s.logg.WithField(skipCtx, "lock_holder", holder)
			}
		}
		s.logg.Debug(skipCtx, "job leased by another worker; skipping")
		return nil
	}

	s.runJob(ctx, job)

	if relErr := s.lock.Release(ctx, job.Name()); relErr != nil {
		relCtx := s.logg.WithField(ctx, "job", job.Name())
		if errors.Is(relErr, ErrLeaseLost) {
			s.logg.Warn(relCtx, "job outlived its lease; another worker may have run it concurrently")
			return nil
		}
		s.logg.Error(relCtx, "failed to release cron lock", relErr)
	}
	return nil
}

func (s *Service) dueJobs() []Job {
	now := s.now()
	var due []Job
	for _, job := range s.registry.Jobs() {
		every := time.Duration(0)
		if periodic, ok := job.(Periodic); ok {
			every = periodic.Every()
		}
		last, ran := s.lastRun[job.Name()]
		if !ran || every <= 0 || now.Sub(last) >= every {
			due = append(due, job)
		}
	}
	return due
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	start := s.now()
	s.lastRun[job.Name()] = start
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Debug(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
