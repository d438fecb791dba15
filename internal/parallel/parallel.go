// Package parallel provides the worker pool and fan-out helpers used by the
// reduction engine and the dataset decoder.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls the goroutine fan-out of For and ForRange.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on goroutines per call.
	MinChunkSize int  // Minimum items per goroutine.
}

// DefaultConfig fans out to every logical core once a loop has at least
// 4096 items per goroutine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// ranges returns how many goroutines a loop of n items gets under cfg.
func (cfg Config) ranges(n int) int {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*max(cfg.MinChunkSize, 1) {
		return 1
	}
	return min(cfg.NumWorkers, n/max(cfg.MinChunkSize, 1))
}

// ForRange splits [0, n) into contiguous ranges and calls body once per
// range, concurrently when cfg allows. It returns when every call has
// returned. Ranges differ in length by at most one item.
func ForRange(n int, body func(lo, hi int), cfg Config) {
	if n <= 0 {
		return
	}
	parts := cfg.ranges(n)
	if parts == 1 {
		body(0, n)
		return
	}

	var wg sync.WaitGroup
	size, extra := n/parts, n%parts
	lo := 0
	for p := range parts {
		hi := lo + size
		if p < extra {
			hi++
		}
		wg.Go(func() { body(lo, hi) })
		lo = hi
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n), spreading the indexes over
// goroutines as ForRange does.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	}, cfg)
}
