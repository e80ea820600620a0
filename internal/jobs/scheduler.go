package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/pkg/logging"
)

// Task is a unit of periodic work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.sugar.Infow("Run skipped, previous run still active", keysAndValues...)
		return
	}
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs each task on its own interval. A task never overlaps with
// itself, a panic is logged instead of killing the process, and every run is
// bounded by the run timeout.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
	started bool
}

// NewScheduler creates a scheduler whose runs are cancelled after timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	logger := logging.WithComponent("scheduler")
	cl := cronLogger{sugar: logger.Sugar()}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		timeout: timeout,
		logger:  logger,
		base:    base,
		cancel:  cancel,
	}
}

// Add schedules task every interval.
func (s *Scheduler) Add(task Task, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive, got %s", task.Name(), every)
	}
	if _, err := s.cron.AddJob("@every "+every.String(), s.wrap(task)); err != nil {
		return fmt.Errorf("schedule %s: %w", task.Name(), err)
	}
	s.logger.Info("Task scheduled", zap.String("task", task.Name()), zap.Duration("every", every))
	return nil
}

func (s *Scheduler) wrap(task Task) cron.FuncJob {
	return func() {
		ctx, cancel := context.WithTimeout(s.base, s.timeout)
		defer cancel()
		if err := task.Run(ctx); err != nil {
			s.logger.Warn("Task run failed", zap.String("task", task.Name()), zap.Error(err))
		}
	}
}

// Start begins scheduling and fires every task once right away.
// Runs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.base.Done():
		}
	}()

	entries := s.cron.Entries()
	s.cron.Start()
	for _, e := range entries {
		s.running.Add(1)
		go func(j cron.Job) {
			defer s.running.Done()
			j.Run()
		}(e.WrappedJob)
	}
	s.logger.Info("Scheduler started", zap.Int("tasks", len(entries)))
}

// Stop cancels in-flight runs and waits for them to return. Runs fired by
// cron are awaited through cron.Stop; start-up runs through running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.started {
		<-s.cron.Stop().Done()
		s.started = false
	}
	s.running.Wait()
	s.logger.Info("Scheduler stopped")
}
