// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/taskflow/internal/logging"
)

// Job is a unit of background work.
type Job func(ctx context.Context) error

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
	ErrNoJobs         = errors.New("no jobs scheduled")
	ErrUnknownJob     = errors.New("unknown job")
	ErrDuplicateJob   = errors.New("job already registered")
)

type entry struct {
	expr string
	job  Job
	id   cron.EntryID
}

// Scheduler wraps a cron runner with named jobs and a run context.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logging.Logger
}

// New creates a stopped scheduler.
func New() *Scheduler {
	log := logging.Component("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		entries: make(map[string]*entry),
		ctx:     context.Background(),
		log:     log,
	}
}

// Add registers job under name using a standard cron expression or a
// descriptor such as "@every 1h". An empty expression is a no-op so that
// disabled jobs can be passed straight from config.
func (s *Scheduler) Add(name, expr string, job Job) error {
	if expr == "" {
		return nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("job %s: invalid cron expression %q: %w", name, expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	e := &entry{expr: expr, job: job}
	e.id = s.cron.Schedule(sched, cron.FuncJob(func() { s.run(name, e.job) }))
	s.entries[name] = e
	return nil
}

// Start begins firing jobs. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if len(s.entries) == 0 {
		return ErrNoJobs
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()

	go func(ctx context.Context) {
		<-ctx.Done()
		_ = s.Stop()
	}(s.ctx)

	s.log.Infof("started with %d job(s)", len(s.entries))
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	done := s.cron.Stop()
	s.mu.Unlock()

	cancel()
	<-done.Done()
	s.log.Info("stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns when name fires next. Zero if the scheduler is stopped or
// the job is unknown.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok || !s.running {
		return time.Time{}
	}
	return s.cron.Entry(e.id).Next
}

// RunNow executes name synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(name, e.job)
}

func (s *Scheduler) run(name string, job Job) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.log.Errorf("job %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		return err
	}
	s.log.Debugf("job %s finished in %s", name, time.Since(start).Round(time.Millisecond))
	return nil
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct {
	log *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
