package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"k8s.io/klog/v2"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 30 * time.Second

// Scheduler runs tagged periodic jobs such as per-session crop pollers.
// Tags are unique, so a job can be removed by the tag it was added with.
type Scheduler struct {
	scheduler *gocron.Scheduler
	timeout   time.Duration

	mu   sync.Mutex
	base context.Context
}

// New creates a new Scheduler. A non-positive jobTimeout means
// DefaultJobTimeout.
func New(jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{
		scheduler: s,
		timeout:   jobTimeout,
		base:      context.Background(),
	}
}

// Start starts the underlying scheduler. Jobs derive their context, and so
// their logger, from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Every runs fn every interval under tag. The first run happens one interval
// from now, and a run is skipped while the previous one is still going.
func (s *Scheduler) Every(tag string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s for %q", interval, tag)
	}

	_, err := s.scheduler.Every(interval).
		Tag(tag).
		SingletonMode().
		WaitForSchedule().
		Do(func() {
			s.mu.Lock()
			base := s.base
			s.mu.Unlock()

			ctx, cancel := context.WithTimeout(base, s.timeout)
			defer cancel()

			klog.FromContext(ctx).V(1).Info("scheduler: running job", "tag", tag)
			fn(ctx)
		})
	if err != nil {
		return fmt.Errorf("scheduler: add %q: %w", tag, err)
	}
	return nil
}

// Remove cancels the job registered under tag.
func (s *Scheduler) Remove(tag string) error {
	if err := s.scheduler.RemoveByTag(tag); err != nil {
		return fmt.Errorf("scheduler: remove %q: %w", tag, err)
	}
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}
