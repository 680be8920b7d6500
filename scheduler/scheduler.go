// Package scheduler runs the periodic maintenance jobs. Each job is a named
// ticker loop in its own goroutine; a panicking run is logged and the loop
// keeps going.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is one scheduled job body.
type TaskFn func()

type job struct {
	interval time.Duration
	cancel   chan struct{}
}

// Scheduler owns the background job loops.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	logger   *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Every schedules fn to run on the given interval. Registering a name twice
// replaces the earlier job.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old.cancel)
	}
	j := &job{interval: interval, cancel: make(chan struct{})}
	s.jobs[name] = j

	go s.loop(name, j, fn)
	s.logger.Info("job scheduled",
		zap.String("job", name),
		zap.Duration("interval", interval))
}

func (s *Scheduler) loop(name string, j *job, fn TaskFn) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.run(name, fn)
		case <-j.cancel:
			return
		case <-s.done:
			return
		}
	}
}

// run executes one job iteration with panic isolation.
func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				zap.String("job", name),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// Once runs fn a single time after the delay. Registering the same name
// again before it fires cancels the earlier run; Cancel does the same.
func (s *Scheduler) Once(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old.cancel)
	}
	j := &job{interval: delay, cancel: make(chan struct{})}
	s.jobs[name] = j

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			s.run(name, fn)
			s.mu.Lock()
			if s.jobs[name] == j {
				delete(s.jobs, name)
			}
			s.mu.Unlock()
		case <-j.cancel:
		case <-s.done:
		}
	}()
}

// Cancel stops the named job. Unknown names are ignored.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		close(j.cancel)
		delete(s.jobs, name)
	}
}

// Stop terminates every job loop. Safe to call concurrently and more
// than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Names returns the registered job names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
