// Package scheduler runs a job on a fixed interval, one run at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrAlreadyRunning = errors.New("cron service already running")
	ErrNotRunning     = errors.New("cron service not running")
)

// JobFunc is one scheduled run. ctx is cancelled on Shutdown.
type JobFunc func(ctx context.Context, logger *slog.Logger)

type CronService struct {
	interval time.Duration
	job      JobFunc
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewCronService validates interval and prepares the service. The interval
// must be a whole number of seconds, at least one.
func NewCronService(interval time.Duration, job JobFunc, logger *slog.Logger) (*CronService, error) {
	if interval < time.Second || interval%time.Second != 0 {
		return nil, fmt.Errorf("invalid interval %s: expected whole seconds, at least 1s", interval)
	}
	if job == nil {
		return nil, errors.New("job is required")
	}
	return &CronService{
		interval: interval,
		job:      job,
		logger:   logger,
	}, nil
}

// Start schedules the job and returns immediately.
func (s *CronService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runJob(ctx)
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true

	s.logger.Info("cron service started", "interval", s.interval)
	return nil
}

func (s *CronService) runJob(ctx context.Context) {
	defer s.handlePanic()
	taskLogger := s.logger.With("task_id", uuid.NewString())
	s.job(ctx, taskLogger)
}

// Shutdown stops scheduling and waits up to timeout for a running job.
func (s *CronService) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	done := s.cron.Stop().Done()
	s.running = false
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("all jobs finished. cron service stopped")
		return nil
	case <-time.After(timeout):
		return errors.New("shutdown timeout: some jobs did not finish")
	}
}

func (s *CronService) handlePanic() {
	if r := recover(); r != nil {
		s.logger.Error("panic recovered in job", "panic", r)
	}
}

// cronLogger adapts slog to cron.Logger. Scheduling chatter goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
