package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the background recrawl job. Two implementations exist so the
// call sites never care whether a cron library is in play or a plain timer
// loop.
type Scheduler interface {
	Start(job func()) error
	Stop()
}

// CronScheduler fires the job on a cron expression (e.g. "0 3 * * *" for
// daily at 03:00).
type CronScheduler struct {
	spec string
	c    *cron.Cron
}

// NewCronScheduler builds a CronScheduler for the given cron spec.
func NewCronScheduler(spec string) *CronScheduler {
	return &CronScheduler{spec: spec}
}

// Start registers the job and starts the cron runner.
func (s *CronScheduler) Start(job func()) error {
	s.c = cron.New()
	if _, err := s.c.AddFunc(s.spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.c.Start()
	return nil
}

// Stop halts the cron runner; a job already in flight finishes.
func (s *CronScheduler) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

// IntervalScheduler is the sleep-loop fallback: it runs the job immediately
// and then once per interval until stopped.
type IntervalScheduler struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewIntervalScheduler builds an IntervalScheduler; a non-positive interval
// defaults to 24 hours.
func NewIntervalScheduler(interval time.Duration) *IntervalScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &IntervalScheduler{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop.
func (s *IntervalScheduler) Start(job func()) error {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				job()
			}
		}
	}()
	return nil
}

// Stop terminates the loop and waits for it to exit.
func (s *IntervalScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
