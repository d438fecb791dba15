// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package gridstat

import (
	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
	"github.com/born-ml/gridstat/internal/reduce"
)

// Shape is the list of dimension lengths of an array.
type Shape = ndarray.Shape

// Array is a dense row-major float64 array with optional dimension names.
type Array = ndarray.Array

// Range selects [Start, End) of one dimension for Array.Slice.
type Range = ndarray.Range

// Engine runs reductions on a worker pool.
type Engine = reduce.Engine

// Request describes one reduction.
type Request = reduce.Request

// Result is a finished reduction.
type Result = reduce.Result

// Kind selects the reduction.
type Kind = reduce.Kind

// AxisRef names an axis by dimension name or index.
type AxisRef = reduce.AxisRef

// Option configures an Engine.
type Option = reduce.Option

// Observer receives engine state changes and chunk completions.
type Observer = reduce.Observer

// Threads is an optional worker count request.
type Threads = parallel.Threads

// Pool is a fixed set of worker goroutines.
type Pool = parallel.Pool

// Reduction kinds.
const (
	Sum  = reduce.Sum
	Mean = reduce.Mean
	Min  = reduce.Min
	Max  = reduce.Max
)

// Error categories, for use with errors.Is.
var (
	ErrUnknownDimension   = reduce.ErrUnknownDimension
	ErrAxisOutOfRange     = reduce.ErrAxisOutOfRange
	ErrEmptyReductionAxis = reduce.ErrEmptyReductionAxis
	ErrConfiguration      = reduce.ErrConfiguration
	ErrWorkerFailure      = reduce.ErrWorkerFailure
	ErrInvalidArray       = reduce.ErrInvalidArray
)

// Array errors.
var (
	ErrShapeOverflow = ndarray.ErrShapeOverflow
	ErrInvalidSlice  = ndarray.ErrInvalidSlice
)

// Engine options.
var (
	WithObserver         = reduce.WithObserver
	WithMetrics          = reduce.WithMetrics
	WithTracer           = reduce.WithTracer
	WithLogger           = reduce.WithLogger
	WithWorkers          = reduce.WithWorkers
	WithMinChunkElements = reduce.WithMinChunkElements
)

// Helpers.
var (
	NewMetrics          = reduce.NewMetrics
	RegisterPoolMetrics = reduce.RegisterPoolMetrics
	AxisByName          = reduce.AxisByName
	AxisByIndex         = reduce.AxisByIndex
	ParseKind           = reduce.ParseKind
	ThreadsOf           = parallel.ThreadsOf
	NewPool             = parallel.NewPool
)

// NewArray wraps data without copying. dims is empty or names every
// dimension.
func NewArray(shape Shape, data []float64, dims ...string) (*Array, error) {
	return ndarray.FromSlice(shape, data, dims...)
}

// NewEngine creates an engine on pool, or on the process-wide pool if pool
// is nil.
func NewEngine(pool *Pool, opts ...Option) *Engine {
	return reduce.NewEngine(pool, opts...)
}

// ConfigurePool sizes the process-wide pool. An unset Threads uses the
// number of logical cores.
func ConfigurePool(threads Threads) (*Pool, error) {
	return reduce.ConfigurePool(threads)
}
