package reduce

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/born-ml/gridstat/internal/parallel"
)

// Metrics records engine activity in Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reductions        *prometheus.CounterVec
	reductionDuration *prometheus.HistogramVec
	chunksDispatched  prometheus.Counter
	chunkDuration     prometheus.Histogram
	cellsReduced      prometheus.Counter
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reductions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridstat",
			Name:      "reductions_total",
			Help:      "Reductions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reductionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridstat",
			Name:      "reduction_duration_seconds",
			Help:      "Wall time of a reduction, from validation to assembled result.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"kind"}),
		chunksDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstat",
			Name:      "chunks_dispatched_total",
			Help:      "Chunks submitted to the worker pool.",
		}),
		chunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridstat",
			Name:      "chunk_duration_seconds",
			Help:      "Time spent folding a single chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
		cellsReduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstat",
			Name:      "cells_reduced_total",
			Help:      "Output cells produced by successful reductions.",
		}),
	}
}

func (m *Metrics) chunkDispatched() {
	if m == nil {
		return
	}
	m.chunksDispatched.Inc()
}

func (m *Metrics) chunkFolded(d time.Duration) {
	if m == nil {
		return
	}
	m.chunkDuration.Observe(d.Seconds())
}

func (m *Metrics) reductionDone(k Kind, cells int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		m.cellsReduced.Add(float64(cells))
	}
	m.reductions.WithLabelValues(k.String(), outcome).Inc()
	m.reductionDuration.WithLabelValues(k.String()).Observe(d.Seconds())
}

// RegisterPoolMetrics exposes the counters of pool through reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *parallel.Pool) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "gridstat",
		Subsystem: "pool",
		Name:      "workers",
		Help:      "Worker goroutines in the pool.",
	}, func() float64 { return float64(pool.Workers()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "gridstat",
		Subsystem: "pool",
		Name:      "tasks_completed_total",
		Help:      "Tasks the pool has finished, including panicked ones.",
	}, func() float64 { return float64(pool.Stats().Completed) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "gridstat",
		Subsystem: "pool",
		Name:      "tasks_panicked_total",
		Help:      "Tasks that panicked.",
	}, func() float64 { return float64(pool.Stats().Panicked) })
}
