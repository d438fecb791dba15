package parallel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Pool errors.
var (
	ErrInvalidThreadCount = errors.New("thread count must be a positive integer")
	ErrPoolConfigured     = errors.New("worker pool already configured with a different size")
	ErrPoolClosed         = errors.New("worker pool is closed")
	ErrTaskPanicked       = errors.New("task panicked")
)

// Pool is a fixed set of long-lived worker goroutines draining a shared
// task queue.
type Pool struct {
	workers int
	tasks   chan task
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

type task struct {
	fn   func() error
	done chan error
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int
	Submitted uint64
	Completed uint64
	Panicked  uint64
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreadCount, workers)
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan task, workers),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done <- p.run(t.fn)
	}
}

func (p *Pool) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		p.completed.Add(1)
	}()
	return fn()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Do runs fn on a pool worker and blocks until it returns.
//
// A panic inside fn is recovered and reported as ErrTaskPanicked.
func (p *Pool) Do(fn func() error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	t := task{fn: fn, done: make(chan error, 1)}
	p.submitted.Add(1)
	p.tasks <- t
	p.mu.RUnlock()

	return <-t.done
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Close stops the workers after queued tasks finish. Calling Close more
// than once is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
