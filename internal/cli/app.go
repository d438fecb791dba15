// Package cli implements the gridstat command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/born-ml/gridstat/internal/dataset"
	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
	"github.com/born-ml/gridstat/internal/reduce"
)

// Version is the gridstat release.
const Version = "v0.1.0"

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1 // I/O and anything uncategorized.
	ExitUsage       = 2 // Bad command line or configuration.
	ExitNotFound    = 3 // Unknown variable or dimension.
	ExitAxis        = 4 // Axis out of range or empty, or an invalid slice range.
	ExitWorkerError = 5
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage),
		errors.Is(err, flag.ErrHelp),
		errors.Is(err, reduce.ErrConfiguration),
		errors.Is(err, parallel.ErrInvalidThreadCount),
		errors.Is(err, parallel.ErrPoolConfigured):
		return ExitUsage
	case errors.Is(err, dataset.ErrNotFound), errors.Is(err, reduce.ErrUnknownDimension):
		return ExitNotFound
	case errors.Is(err, reduce.ErrAxisOutOfRange),
		errors.Is(err, reduce.ErrEmptyReductionAxis),
		errors.Is(err, ndarray.ErrInvalidSlice):
		return ExitAxis
	case errors.Is(err, reduce.ErrWorkerFailure):
		return ExitWorkerError
	default:
		return ExitFailure
	}
}

// Main runs gridstat with args (without the program name) and returns the
// exit code.
func Main(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, err := ParseArgs(args, getenv, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "gridstat: %v\n", err)
		}
		return ExitCode(err)
	}

	app := New(cfg, stdout, stderr)
	if err := app.Run(ctx); err != nil {
		app.logger.Error("gridstat failed", slog.String("error", err.Error()))
		return ExitCode(err)
	}
	return ExitOK
}

// App executes one parsed invocation.
type App struct {
	cfg      *Config
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	registry *prometheus.Registry
}

// New creates an App writing reports to stdout and logs to stderr.
func New(cfg *Config, stdout, stderr io.Writer) *App {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return &App{
		cfg:      cfg,
		stdout:   stdout,
		stderr:   stderr,
		logger:   slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		registry: prometheus.NewRegistry(),
	}
}

// Run performs the configured action.
func (a *App) Run(ctx context.Context) (err error) {
	if a.cfg.Action.Type == ActionVersion {
		fmt.Fprintf(a.stdout, "gridstat %s\n", Version)
		return nil
	}
	if a.cfg.Metrics {
		defer func() {
			if dumpErr := a.dumpMetrics(); dumpErr != nil && err == nil {
				err = dumpErr
			}
		}()
	}

	src, err := a.open()
	if err != nil {
		return err
	}
	defer src.Close()

	switch a.cfg.Action.Type {
	case ActionListVars:
		listVariables(a.stdout, src.Header())
		return nil
	case ActionDescribe:
		meta, err := src.Variable(a.cfg.Action.Variable)
		if err != nil {
			return err
		}
		describeVariable(a.stdout, src.Header(), meta)
		return nil
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	arr, err := src.Load(a.cfg.Action.Variable, a.loadOptions())
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", a.cfg.Action.Variable, err)
	}

	switch a.cfg.Action.Type {
	case ActionSummary:
		return a.summarize(ctx, engine, arr)
	case ActionSlice:
		return a.slice(ctx, engine, src, arr)
	}
	return a.reduce(ctx, engine, src, arr)
}

func (a *App) open() (dataset.Source, error) {
	opts := dataset.ReaderOptions{ValidationLevel: dataset.ValidationStrict}
	var (
		src dataset.Source
		err error
	)
	if a.cfg.NoMmap {
		src, err = dataset.OpenWithOptions(a.cfg.File, opts)
	} else {
		src, err = dataset.OpenMmapWithOptions(a.cfg.File, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", a.cfg.File, err)
	}
	a.logger.Debug("dataset opened",
		slog.String("file", a.cfg.File),
		slog.Int("variables", len(src.Header().Variables)),
		slog.Bool("mmap", !a.cfg.NoMmap))
	return src, nil
}

func (a *App) loadOptions() dataset.LoadOptions {
	opts := dataset.DefaultLoadOptions()
	opts.MaskFill = !a.cfg.NoMask
	return opts
}

// engine configures the process-wide pool and builds an engine on it.
func (a *App) engine() (*reduce.Engine, error) {
	pool, err := reduce.ConfigurePool(a.cfg.Threads)
	if err != nil {
		return nil, err
	}

	opts := []reduce.Option{
		reduce.WithLogger(a.logger),
		reduce.WithMetrics(reduce.NewMetrics(a.registry)),
	}
	reduce.RegisterPoolMetrics(a.registry, pool)

	if a.cfg.Verbose {
		printInfo(a.stdout, parallel.GetInfo(), pool.Workers())
		opts = append(opts, reduce.WithObserver(progressObserver{logger: a.logger}))
	}
	return reduce.NewEngine(pool, opts...), nil
}

func (a *App) reduce(ctx context.Context, engine *reduce.Engine, src dataset.Source, arr *ndarray.Array) error {
	act := a.cfg.Action
	res, err := engine.Reduce(ctx, arr, reduce.Request{Variable: act.Variable, Kind: act.Kind, Axis: act.Axis})
	if err != nil {
		return err
	}

	if a.cfg.Output == "" {
		printResult(a.stdout, res)
		return nil
	}

	meta, err := src.Variable(act.Variable)
	if err != nil {
		return err
	}
	if err := dataset.WriteResult(a.cfg.Output, res, meta); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.cfg.Output, err)
	}
	fmt.Fprintf(a.stdout, "Result %s saved to %s\n", res.OutputName(), a.cfg.Output)
	return nil
}

// slice cuts the configured ranges out of arr and either writes them to the
// output file or prints them with their statistics.
func (a *App) slice(ctx context.Context, engine *reduce.Engine, src dataset.Source, arr *ndarray.Array) error {
	act := a.cfg.Action
	ranges, err := resolveRanges(arr, act.Ranges)
	if err != nil {
		return fmt.Errorf("slice %q: %w", act.Variable, err)
	}
	sub, err := arr.Slice(ranges)
	if err != nil {
		return fmt.Errorf("slice %q: %w", act.Variable, err)
	}
	a.logger.Debug("slice extracted",
		slog.String("variable", act.Variable),
		slog.String("ranges", formatRanges(arr.Dims(), ranges)),
		slog.Int("elements", sub.Len()))

	if a.cfg.Output != "" {
		meta, err := src.Variable(act.Variable)
		if err != nil {
			return err
		}
		if err := dataset.WriteSlice(a.cfg.Output, act.Variable, sub, meta, formatRanges(arr.Dims(), ranges)); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.cfg.Output, err)
		}
		fmt.Fprintf(a.stdout, "Slice of %s saved to %s\n", act.Variable, a.cfg.Output)
		return nil
	}

	s, err := summarizeArray(ctx, engine, act.Variable, sub)
	if err != nil {
		return err
	}
	printSlice(a.stdout, act.Variable, arr, sub, ranges)
	printSummary(a.stdout, s)
	return nil
}

// resolveRanges maps named ranges onto the axes of arr. Unnamed axes are
// taken whole.
func resolveRanges(arr *ndarray.Array, specs []DimRange) ([]ndarray.Range, error) {
	ranges := arr.Shape().Full()
	dims := arr.DimIndex()
	set := make([]bool, len(ranges))
	for _, r := range specs {
		axis := 0
		switch {
		case r.Dim != "":
			i, ok := dims[r.Dim]
			if !ok {
				return nil, fmt.Errorf("%w: %q", reduce.ErrUnknownDimension, r.Dim)
			}
			axis = i
		case len(ranges) == 0:
			return nil, fmt.Errorf("%w: a scalar has no dimension to slice", ndarray.ErrInvalidSlice)
		}
		if set[axis] {
			return nil, fmt.Errorf("%w: axis %d sliced twice", ErrUsage, axis)
		}
		set[axis] = true
		ranges[axis] = ndarray.Range{Start: r.Start, End: r.End}
	}
	return ranges, nil
}

// summarize prints whole-variable statistics of arr.
func (a *App) summarize(ctx context.Context, engine *reduce.Engine, arr *ndarray.Array) error {
	s, err := summarizeArray(ctx, engine, a.cfg.Action.Variable, arr)
	if err != nil {
		return err
	}
	printSummary(a.stdout, s)
	return nil
}

// summarizeArray computes statistics over the valid cells of arr in two
// passes: a fold along the leading axis, split across the pool by output
// cell, then a fold of the per-cell partials. NaN cells are left out of
// every statistic.
func summarizeArray(ctx context.Context, engine *reduce.Engine, variable string, arr *ndarray.Array) (summary, error) {
	s := summary{Variable: variable, Total: arr.Len()}
	if arr.Len() == 0 {
		return s, nil
	}
	if arr.Rank() < 2 {
		arr = arr.Flatten("cell")
	}

	fold := func(src *ndarray.Array, k reduce.Kind) (*reduce.Result, error) {
		return engine.Reduce(ctx, src, reduce.Request{Variable: variable, Kind: k, Axis: reduce.AxisByIndex(0)})
	}
	combine := func(partial *reduce.Result) (float64, error) {
		res, err := fold(partial.Values.Flatten("cell"), partial.Kind)
		if err != nil {
			return 0, err
		}
		return res.Values.Data()[0], nil
	}

	lo, err := fold(arr, reduce.Min)
	if err != nil {
		return s, err
	}
	for _, c := range lo.Counts {
		s.Valid += c
	}
	if s.Valid == 0 {
		return s, nil
	}

	hi, err := fold(arr, reduce.Max)
	if err != nil {
		return s, err
	}
	zeroed := make([]float64, arr.Len())
	for i, v := range arr.Data() {
		if !math.IsNaN(v) {
			zeroed[i] = v
		}
	}
	valid, err := ndarray.FromSlice(arr.Shape(), zeroed, arr.Dims()...)
	if err != nil {
		return s, err
	}
	total, err := fold(valid, reduce.Sum)
	if err != nil {
		return s, err
	}

	s.Values = make(map[reduce.Kind]float64, len(reduce.Kinds))
	for k, partial := range map[reduce.Kind]*reduce.Result{reduce.Min: lo, reduce.Max: hi, reduce.Sum: total} {
		if s.Values[k], err = combine(partial); err != nil {
			return s, err
		}
	}
	s.Values[reduce.Mean] = s.Values[reduce.Sum] / float64(s.Valid)
	return s, nil
}

// dumpMetrics writes the registry in the Prometheus text format to stderr.
func (a *App) dumpMetrics() error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// progressObserver logs chunk completions.
type progressObserver struct {
	logger *slog.Logger
}

func (o progressObserver) StateChanged(reduce.State) {}

func (o progressObserver) ChunkCompleted(c reduce.Chunk, completed, total int) {
	o.logger.Info("progress",
		slog.Int("chunk", c.Index),
		slog.Int("completed", completed),
		slog.Int("total", total))
}
