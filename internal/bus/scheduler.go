package bus

import (
	"context"
	"sync"
)

// Scheduler is a cooperative FIFO task queue. Everything scheduled during a
// call runs on the next Drain, which is the next scheduling turn of the engine.
type Scheduler struct {
	mu       sync.Mutex
	tasks    []func()
	draining bool
	wake     chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// Schedule appends a task. Nil tasks are ignored.
func (s *Scheduler) Schedule(task func()) {
	if task == nil {
		return
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Drain runs queued tasks in order, including tasks they schedule, until the
// queue is empty. A Drain called from inside a task returns immediately.
func (s *Scheduler) Drain() int {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return 0
	}
	s.draining = true
	s.mu.Unlock()

	ran := 0
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.draining = false
			s.mu.Unlock()
			return ran
		}
		task := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		task()
		ran++
	}
}

// Run drains whenever tasks are scheduled until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.Drain()
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
	}
}
