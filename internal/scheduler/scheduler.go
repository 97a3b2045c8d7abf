// Package scheduler runs the orchestrator on a cron schedule and tracks run status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"trendradar/internal/logging"
	"trendradar/internal/orchestrator"
)

// Runner executes one aggregation run.
type Runner interface {
	Run(ctx context.Context) (*orchestrator.RunResult, error)
}

// AfterRunFunc is called after every completed run, including partial ones.
type AfterRunFunc func(ctx context.Context, result *orchestrator.RunResult)

// Status is a snapshot of the scheduler state served on /status.
type Status struct {
	Schedule   string    `json:"schedule"`
	Running    bool      `json:"running"`
	Runs       int       `json:"runs"`
	Skipped    int       `json:"skipped"` // overlapping triggers rejected
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastRunAt  time.Time `json:"last_run_at"`
	LastError  string    `json:"last_error,omitempty"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// Service schedules runs.
type Service struct {
	runner   Runner
	afterRun AfterRunFunc
	logger   *zap.Logger
	clock    func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // protects status and started
	status  Status
	started bool
}

// NewService creates a scheduler for runner.
func NewService(runner Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := logging.NewCronLogger(logger)
	return &Service{
		runner: runner,
		logger: logger,
		clock:  time.Now,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// WithAfterRun sets a hook called after each run.
func (s *Service) WithAfterRun(fn AfterRunFunc) *Service {
	s.afterRun = fn
	return s
}

// Start registers the schedule and starts the cron loop. When runOnStart is
// set the first run is triggered immediately in the background.
func (s *Service) Start(ctx context.Context, schedule string, runOnStart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	s.status.Schedule = schedule
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", zap.String("schedule", schedule), zap.Bool("run_on_start", runOnStart))

	if runOnStart {
		go s.runScheduled()
	}
	return nil
}

// Stop cancels in-flight runs and waits for them to return or ctx to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Trigger runs once synchronously outside the schedule.
func (s *Service) Trigger(ctx context.Context) (*orchestrator.RunResult, error) {
	return s.runOnce(ctx)
}

// Status returns the current scheduler state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	if s.started {
		st.NextRunAt = s.cron.Entry(s.entryID).Next
	}
	return st
}

func (s *Service) runScheduled() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.runOnce(ctx); err != nil && !errors.Is(err, orchestrator.ErrRunInProgress) {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

func (s *Service) runOnce(ctx context.Context) (*orchestrator.RunResult, error) {
	s.mu.Lock()
	if s.status.Running {
		s.status.Skipped++
		s.mu.Unlock()
		s.logger.Warn("run already in progress, skipping")
		return nil, orchestrator.ErrRunInProgress
	}
	s.status.Running = true
	s.mu.Unlock()

	result, err := s.safeRun(ctx)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		s.mu.Lock()
		s.status.Running = false
		s.status.Skipped++
		s.mu.Unlock()
		return nil, err
	}
	s.finish(result, err)
	if err != nil {
		return nil, err
	}

	if s.afterRun != nil {
		s.afterRun(ctx, result)
	}
	return result, nil
}

// safeRun converts a panicking run into an error so status is always released.
func (s *Service) safeRun(ctx context.Context) (result *orchestrator.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in run", zap.Any("panic", r))
			result, err = nil, fmt.Errorf("run panicked: %v", r)
		}
	}()
	return s.runner.Run(ctx)
}

func (s *Service) finish(result *orchestrator.RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Running = false
	s.status.Runs++
	s.status.LastRunAt = s.clock()
	s.status.LastError = ""

	if err != nil {
		s.status.LastRunID = ""
		s.status.LastStatus = orchestrator.StatusError
		s.status.LastError = err.Error()
		return
	}
	s.status.LastRunID = result.RunID
	s.status.LastStatus = result.Status()
	if len(result.Errors) > 0 {
		s.status.LastError = result.Errors[0]
	}
}
