package reduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
)

const tracerName = "github.com/born-ml/gridstat/internal/reduce"

// Request describes one reduction.
type Request struct {
	Variable string // Used for error messages and output naming only.
	Kind     Kind
	Axis     AxisRef
}

// Engine runs reductions on a worker pool.
//
// An Engine is safe for concurrent use; concurrent reductions share the
// pool's workers.
type Engine struct {
	pool     *parallel.Pool
	workers  int
	minChunk int
	observer Observer
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver installs a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMetrics records activity in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers overrides the number of chunks the output is split into.
// By default it equals the pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithMinChunkElements limits splitting so that each chunk covers at least
// roughly n source elements. Values below 2 disable the limit.
func WithMinChunkElements(n int) Option {
	return func(e *Engine) { e.minChunk = n }
}

// NewEngine creates an engine on pool. A nil pool selects the process-wide
// pool from parallel.Shared.
func NewEngine(pool *parallel.Pool, opts ...Option) *Engine {
	if pool == nil {
		pool = parallel.Shared()
	}
	e := &Engine{
		pool:     pool,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pool returns the pool the engine dispatches to.
func (e *Engine) Pool() *parallel.Pool {
	return e.pool
}

// chunkTarget returns how many chunks to ask the partitioner for.
func (e *Engine) chunkTarget(elements int) int {
	n := e.workers
	if n < 1 {
		n = e.pool.Workers()
	}
	if e.minChunk > 1 {
		n = min(n, max(1, elements/e.minChunk))
	}
	return n
}

// Reduce collapses one axis of a.
//
// The call blocks until every chunk has been folded. On error no result is
// returned; the error is an *Error wrapping one of the category sentinels.
// ctx carries tracing only: a reduction cannot be cancelled once dispatched.
func (e *Engine) Reduce(ctx context.Context, a *ndarray.Array, req Request) (res *Result, err error) {
	started := time.Now()
	_, span := e.tracer.Start(ctx, "reduce", trace.WithAttributes(
		attribute.String("reduce.kind", req.Kind.String()),
		attribute.String("reduce.variable", req.Variable),
		attribute.String("reduce.axis", req.Axis.String()),
	))
	defer span.End()

	r := &run{engine: e, req: req}
	r.enter(StateIdle)

	defer func() {
		cells := 0
		if err != nil {
			r.enter(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			cells = res.Values.Len()
			span.SetAttributes(attribute.Int("reduce.chunks", res.Chunks), attribute.Int("reduce.cells", cells))
		}
		e.metrics.reductionDone(req.Kind, cells, time.Since(started), err)
	}()

	res, err = r.execute(a)
	return res, err
}

// run holds the state of a single Reduce call.
type run struct {
	engine *Engine
	req    Request
}

func (r *run) enter(s State) {
	r.engine.observer.StateChanged(s)
	r.engine.logger.Debug("reduction state",
		slog.String("variable", r.req.Variable),
		slog.String("kind", r.req.Kind.String()),
		slog.String("state", s.String()))
}

func (r *run) fail(op string, err error) error {
	return &Error{Op: op, Variable: r.req.Variable, Axis: r.req.Axis, Err: err}
}

func (r *run) execute(a *ndarray.Array) (*Result, error) {
	e := r.engine

	// Idle -> Partitioned.
	if a == nil {
		return nil, r.fail("validate", fmt.Errorf("%w: nil array", ErrInvalidArray))
	}
	if err := a.Validate(); err != nil {
		return nil, r.fail("validate", fmt.Errorf("%w: %w", ErrInvalidArray, err))
	}
	fold, err := kernelFor(r.req.Kind)
	if err != nil {
		return nil, r.fail("validate", err)
	}
	shape := a.Shape()
	axis, err := ResolveAxis(shape, a.DimIndex(), r.req.Axis)
	if err != nil {
		return nil, r.fail("resolve", err)
	}
	_, n, inner := shape.Split(axis)
	l := layout{n: n, inner: inner}
	chunks := Partition(shape, axis, e.chunkTarget(a.Len()))
	r.enter(StatePartitioned)

	// Partitioned -> Dispatched.
	partials, err := r.dispatch(a.Data(), l, chunks, fold)
	if err != nil {
		return nil, r.fail("dispatch", err)
	}

	// Dispatched -> Merging.
	r.enter(StateMerging)
	cells := shape.Without(axis).NumElements()
	values, counts := merge(r.req.Kind, n, cells, partials)

	res, err := assemble(r.req, a, axis, values, counts, len(chunks))
	if err != nil {
		return nil, r.fail("assemble", err)
	}
	r.enter(StateComplete)
	return res, nil
}

// dispatch folds every chunk on the pool and waits for all of them. Partials
// are returned indexed by chunk index.
func (r *run) dispatch(data []float64, l layout, chunks []Chunk, fold kernel) ([]*partial, error) {
	e := r.engine
	r.enter(StateDispatched)

	partials := make([]*partial, len(chunks))
	var completed atomic.Int64
	var g errgroup.Group
	for i, c := range chunks {
		e.metrics.chunkDispatched()
		g.Go(func() error {
			return e.pool.Do(func() error {
				t0 := time.Now()
				p, err := fold(data, l, c)
				if err != nil {
					return err
				}
				partials[i] = p
				elapsed := time.Since(t0)
				e.metrics.chunkFolded(elapsed)
				done := int(completed.Add(1))
				e.observer.ChunkCompleted(c, done, len(chunks))
				e.logger.Debug("chunk folded",
					slog.Int("chunk", c.Index),
					slog.Int("cells", c.Len()),
					slog.Duration("elapsed", elapsed))
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrEmptyReductionAxis) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailure, err)
	}
	return partials, nil
}

// merge copies partials into the output in chunk index order. Mean sums are
// normalized here.
func merge(k Kind, n, cells int, partials []*partial) ([]float64, []int) {
	values := make([]float64, cells)
	counts := make([]int, cells)
	for _, p := range partials {
		c := p.chunk
		copy(values[c.Start:c.End], p.values)
		copy(counts[c.Start:c.End], p.counts)
	}
	if k == Mean {
		for i := range values {
			values[i] /= float64(n)
		}
	}
	return values, counts
}
