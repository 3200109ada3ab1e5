package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job represents a scheduled job. When Due is set the job only runs on ticks
// for which Due returns true.
type Job struct {
	Name     string
	Interval time.Duration
	Due      func(now time.Time) bool
	Fn       func(ctx context.Context) error
}

// Scheduler runs registered jobs on fixed intervals until its context ends.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job
	now  func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

// WithClock replaces the clock used to evaluate Due.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.Add(Job{Name: name, Interval: interval, Fn: fn})
}

func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, job)
	slog.Info("Cron job registered", "name", job.Name, "interval", job.Interval)
}

func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Run starts every job and blocks until ctx is cancelled and all running
// jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	jobs := s.Jobs()

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	slog.Info("Cron scheduler started", "job_count", len(jobs))

	<-ctx.Done()
	slog.Info("Stopping cron scheduler...")
	wg.Wait()
	slog.Info("Cron scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.executeJob(ctx, job)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Cron job stopping", "name", job.Name)
			return
		case <-ticker.C:
			s.executeJob(ctx, job)
		}
	}
}

// executeJob executes a job and logs results
func (s *Scheduler) executeJob(ctx context.Context, job Job) {
	if job.Due != nil && !job.Due(s.now()) {
		return
	}

	start := time.Now()
	slog.Debug("Cron job starting", "name", job.Name)

	if err := job.Fn(ctx); err != nil {
		slog.Error("Cron job failed", "name", job.Name, "error", err, "duration", time.Since(start))
	} else {
		slog.Debug("Cron job completed", "name", job.Name, "duration", time.Since(start))
	}
}

// RunOnce runs every due job once, in registration order.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.Jobs() {
		s.executeJob(ctx, job)
	}
}

// RunJob runs the named job immediately, ignoring Due. It reports false when
// no such job is registered.
func (s *Scheduler) RunJob(ctx context.Context, name string) (bool, error) {
	for _, job := range s.Jobs() {
		if job.Name == name {
			return true, job.Fn(ctx)
		}
	}
	return false, nil
}
