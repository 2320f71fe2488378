// Package scheduler runs units of work on a fixed number of workers pulling from
// an unbounded FIFO queue.
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("scheduler is closed")

// Stats is a point-in-time snapshot of the scheduler counters.
type Stats struct {
	Running   int64 `json:"running"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// Scheduler admits closures into a FIFO queue and never runs more than
// maxConcurrentTasks of them at the same time.
type Scheduler struct {
	maxConcurrentTasks int

	mu     sync.Mutex
	work   *sync.Cond
	idle   *sync.Cond
	queue  []func() bool
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	total     atomic.Int64
}

// New starts a scheduler with maxConcurrentTasks workers. A non-positive value
// means one worker per available CPU.
func New(maxConcurrentTasks int) *Scheduler {
	if maxConcurrentTasks <= 0 {
		maxConcurrentTasks = runtime.NumCPU()
	}

	s := &Scheduler{maxConcurrentTasks: maxConcurrentTasks}
	s.work = sync.NewCond(&s.mu)
	s.idle = sync.NewCond(&s.mu)

	for i := 0; i < maxConcurrentTasks; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

var (
	sharedOnce sync.Once
	shared     *Scheduler
)

// Shared returns the process-wide scheduler, creating it on the first call. The
// limit passed by later callers is ignored; they get the instance configured by
// the first one.
func Shared(maxConcurrentTasks int) *Scheduler {
	sharedOnce.Do(func() {
		shared = New(maxConcurrentTasks)
	})
	return shared
}

func (s *Scheduler) MaxConcurrentTasks() int {
	return s.maxConcurrentTasks
}

// Stats reads the counters without waiting for any running task.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Running:   s.running.Load(),
		Queued:    s.queued.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Total:     s.total.Load(),
	}
}

// Wait blocks until the queue is empty and no task is running.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 || s.running.Load() > 0 {
		s.idle.Wait()
	}
}

// Close stops accepting work, lets the workers drain what is already queued and
// waits for them to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.work.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) enqueue(job func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.queue = append(s.queue, job)
	s.total.Add(1)
	s.queued.Add(1)
	s.work.Signal()
	return nil
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.work.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}

		job := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.queued.Add(-1)
		s.running.Add(1)
		s.mu.Unlock()

		if job() {
			s.completed.Add(1)
		} else {
			s.failed.Add(1)
		}

		s.mu.Lock()
		s.running.Add(-1)
		if len(s.queue) == 0 && s.running.Load() == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
	}
}

// Future holds the eventual outcome of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the task finished, successfully or not.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task finished and returns its outcome.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// Submit queues executor(task). The executor failing, or panicking, only fails
// the returned future.
func Submit[I, O any](s *Scheduler, task I, executor func(I) (O, error)) *Future[O] {
	future := newFuture[O]()

	err := s.enqueue(func() bool {
		value, err := run(task, executor)
		if err != nil {
			log.Printf("ERROR: Task failed: %v", err)
		}
		future.resolve(value, err)
		return err == nil
	})
	if err != nil {
		var zero O
		future.resolve(zero, err)
	}

	return future
}

// SubmitAll queues every task and returns their results in input order. It
// returns as soon as any task fails; the other tasks keep running and their
// outcomes are dropped.
func SubmitAll[I, O any](s *Scheduler, tasks []I, executor func(I) (O, error)) ([]O, error) {
	futures := make([]*Future[O], len(tasks))
	for i, task := range tasks {
		futures[i] = Submit(s, task, executor)
	}

	// Buffered so the watchers never block once we stop listening.
	finished := make(chan int, len(futures))
	for i, future := range futures {
		i, future := i, future
		go func() {
			<-future.Done()
			finished <- i
		}()
	}

	results := make([]O, len(futures))
	for range futures {
		i := <-finished
		value, err := futures[i].Await()
		if err != nil {
			return nil, fmt.Errorf("task %d failed: %w", i, err)
		}
		results[i] = value
	}

	return results, nil
}

func run[I, O any](task I, executor func(I) (O, error)) (value O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return executor(task)
}
