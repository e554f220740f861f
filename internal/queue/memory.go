package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type memoryJob struct {
	handle  string
	payload SchedulePostPayload
	timer   *time.Timer
}

// MemoryScheduler keeps jobs in process memory. A timer per job hands it to
// a fixed pool of workers once its instant arrives. Jobs do not survive a
// restart.
type MemoryScheduler struct {
	workers int
	work    chan memoryJob
	quit    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*memoryJob
	handler Handler
	started bool
	stopped bool
}

func NewMemoryScheduler(workers int) *MemoryScheduler {
	if workers <= 0 {
		workers = 1
	}
	return &MemoryScheduler{
		workers: workers,
		work:    make(chan memoryJob),
		quit:    make(chan struct{}),
		jobs:    make(map[string]*memoryJob),
	}
}

// Start launches the workers. Jobs that come due before Start wait for it.
func (s *MemoryScheduler) Start(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.handler = h

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop halts the workers and drops pending jobs.
func (s *MemoryScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for handle, job := range s.jobs {
		if job.timer != nil {
			job.timer.Stop()
		}
		delete(s.jobs, handle)
	}
	close(s.quit)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *MemoryScheduler) Enqueue(_ context.Context, payload SchedulePostPayload, at time.Time) (string, error) {
	handle, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", fmt.Errorf("scheduler stopped")
	}

	job := &memoryJob{handle: handle, payload: payload}
	s.jobs[handle] = job

	if delay := time.Until(at); delay > 0 {
		job.timer = time.AfterFunc(delay, func() { s.fire(handle) })
	} else {
		go s.fire(handle)
	}
	return handle, nil
}

func (s *MemoryScheduler) Cancel(_ context.Context, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[handle]
	if !ok {
		return false, nil
	}
	if job.timer != nil {
		job.timer.Stop()
	}
	delete(s.jobs, handle)
	return true, nil
}

// Pending returns the number of jobs not yet handed to a worker.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *MemoryScheduler) fire(handle string) {
	s.mu.Lock()
	job, ok := s.jobs[handle]
	if ok {
		delete(s.jobs, handle)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	select {
	case s.work <- *job:
	case <-s.quit:
	}
}

func (s *MemoryScheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.work:
			s.run(job)
		case <-s.quit:
			return
		}
	}
}

func (s *MemoryScheduler) run(job memoryJob) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "handle", job.handle, "post_id", job.payload.PostID, "panic", r)
		}
	}()

	if err := s.handler(context.Background(), job.payload); err != nil {
		slog.Error("job failed", "handle", job.handle, "post_id", job.payload.PostID,
			"attempt", job.payload.Attempt, "error", err)
	}
}
