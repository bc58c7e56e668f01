// Package scheduler triggers the recurring-transaction sweep on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/middleware"
	"github.com/SscSPs/pfm_backend/internal/utils"
	"github.com/robfig/cron/v3"
)

const sweepEvent = "recurrence_sweep"

// cronParser accepts standard five-field expressions, an optional leading seconds field and descriptors like @daily.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs RecurrenceSvc.Sweep on a schedule. Runs never overlap within the process;
// the sweep's own lock and claim lease keep replicas apart.
type Scheduler struct {
	cron    *cron.Cron
	sweeper portssvc.RecurrenceSvc
	logger  *slog.Logger
	clock   func() time.Time
	timeout time.Duration
	events  *utils.PosthogClientWrapper
	entryID cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time passed to each sweep.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithRunTimeout bounds a single sweep run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithEvents reports every run's counters as an analytics event.
func WithEvents(events *utils.PosthogClientWrapper) Option {
	return func(s *Scheduler) { s.events = events }
}

// New validates spec and registers the sweep job. Nothing runs until Start.
func New(spec string, sweeper portssvc.RecurrenceSvc, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		sweeper: sweeper,
		logger:  logger.With(slog.String("component", "scheduler")),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cronLog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(cronParser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Sweep scheduler started", slog.Time("next_run", s.cron.Entry(s.entryID).Next))
}

// Stop halts the schedule and waits for a running sweep to finish, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running sweep: %w", ctx.Err())
	}
}

// RunOnce performs a single sweep with the scheduler's clock and logger.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.SweepResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = middleware.WithLogger(ctx, s.logger)

	started := time.Now()
	result, err := s.sweeper.Sweep(ctx, s.clock())
	s.report(result, err, time.Since(started))
	return result, err
}

func (s *Scheduler) run() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.Error("Scheduled sweep failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) report(result *domain.SweepResult, err error, elapsed time.Duration) {
	if !s.events.IsInitialized() || result == nil {
		return
	}
	props := map[string]any{
		"claimed":      result.Claimed,
		"emitted":      result.Emitted,
		"deduplicated": result.Deduplicated,
		"advanced":     result.Advanced,
		"expired":      result.Expired,
		"skipped":      result.Skipped,
		"failed":       result.Failed,
		"duration_ms":  elapsed.Milliseconds(),
		"success":      err == nil,
	}
	s.events.Enqueue("system", sweepEvent, props)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
