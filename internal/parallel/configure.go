package parallel

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// Threads is an optional requested worker count.
// The zero value means "not specified".
type Threads struct {
	n   int
	set bool
}

// ThreadsOf returns an explicit thread request.
func ThreadsOf(n int) Threads {
	return Threads{n: n, set: true}
}

// Value returns the requested count and whether one was given.
func (t Threads) Value() (int, bool) {
	return t.n, t.set
}

// MaxWorkers is the largest pool size Configure will create.
// Requests above it are capped to avoid oversubscription.
func MaxWorkers() int {
	return 2 * runtime.NumCPU()
}

// ResolveWorkers turns a thread request into a pool size.
//
// Unset requests use the logical core count. Explicit requests must be
// positive and are capped at MaxWorkers.
func ResolveWorkers(t Threads) (int, error) {
	n, ok := t.Value()
	if !ok {
		return runtime.NumCPU(), nil
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidThreadCount, n)
	}
	if limit := MaxWorkers(); n > limit {
		slog.Warn("thread count capped", slog.Int("requested", n), slog.Int("max", limit))
		return limit, nil
	}
	return n, nil
}

var shared struct {
	once sync.Once
	pool *Pool
}

// Configure returns the process-wide pool, creating it on first use.
//
// The pool is created exactly once, even under concurrent first calls, and
// is reused for the lifetime of the process. A later explicit request for a
// different size fails with ErrPoolConfigured.
func Configure(t Threads) (*Pool, error) {
	n, err := ResolveWorkers(t)
	if err != nil {
		return nil, err
	}

	shared.once.Do(func() {
		// n >= 1 here, NewPool cannot fail.
		shared.pool, _ = NewPool(n)
		slog.Debug("worker pool started", slog.Int("workers", n))
	})

	if _, explicit := t.Value(); explicit && shared.pool.Workers() != n {
		return nil, fmt.Errorf("%w: running %d workers, requested %d",
			ErrPoolConfigured, shared.pool.Workers(), n)
	}
	return shared.pool, nil
}

// Shared returns the process-wide pool, creating it with the default size if
// it does not exist yet.
func Shared() *Pool {
	p, _ := Configure(Threads{})
	return p
}
