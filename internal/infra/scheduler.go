package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job states
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// ErrJobBusy is returned by RunNow while a tick of the same job is in flight
var ErrJobBusy = errors.New("job is already running")

// JobFunc is one tick of a recurring job
type JobFunc func(ctx context.Context) error

// Scheduler runs recurring jobs on a robfig/cron instance
type Scheduler struct {
	cron   *cron.Cron
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []*Job
}

// Job is a registered recurring job. Ticks never overlap: a tick that fires
// while the previous one is still running is skipped.
type Job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	log      *zap.Logger
	baseCtx  func() context.Context

	mu      sync.Mutex
	running atomic.Bool
}

// NewScheduler creates a new scheduler
func NewScheduler(log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := newCronLogger(log)
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		log:    log.Named("scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers fn to run every interval once the scheduler is started
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) (*Job, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("job %s: interval %s is below one second", name, interval)
	}

	job := &Job{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      s.log.With(zap.String("job", name)),
		baseCtx:  func() context.Context { return s.ctx },
	}

	schedule := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(schedule, job.tick); err != nil {
		return nil, fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs = append(s.jobs, job)
	return job, nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, j := range s.jobs {
		s.log.Info("Job scheduled", zap.String("job", j.name), zap.Duration("interval", j.interval))
	}
}

// Stop cancels in-flight ticks and waits for them to return
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// Name returns the job name
func (j *Job) Name() string {
	return j.name
}

// State returns idle or running
func (j *Job) State() string {
	if j.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// RunNow runs one tick synchronously. Returns ErrJobBusy if a tick is in flight.
func (j *Job) RunNow(ctx context.Context) error {
	if !j.mu.TryLock() {
		return ErrJobBusy
	}
	defer j.mu.Unlock()
	return j.run(ctx)
}

func (j *Job) tick() {
	if !j.mu.TryLock() {
		j.log.Debug("Previous tick still running, skipping")
		return
	}
	defer j.mu.Unlock()

	err := j.run(j.baseCtx())
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		j.log.Info("Scheduled tick stopped by shutdown", zap.Error(err))
	default:
		j.log.Error("Scheduled tick failed", zap.Error(err))
	}
}

func (j *Job) run(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	j.running.Store(true)
	defer j.running.Store(false)

	start := time.Now()
	err := j.fn(ctx)
	j.log.Debug("Tick finished", zap.Duration("elapsed", time.Since(start)))
	return err
}
