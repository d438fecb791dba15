package cli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gridstat/internal/dataset"
	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
	"github.com/born-ml/gridstat/internal/reduce"
)

// writeDataset creates a small file with temperature(time=2, lat=3) and an
// empty record variable.
func writeDataset(t *testing.T) string {
	t.Helper()
	w := dataset.NewWriter()

	temp, err := ndarray.FromSlice(ndarray.Shape{2, 3}, []float64{1, 2, 3, 4, 5, -999}, "time", "lat")
	require.NoError(t, err)
	require.NoError(t, w.AddVariable("temperature", temp, ndarray.Float32, dataset.Attributes{
		"units":               "K",
		dataset.AttrFillValue: -999.0,
	}))

	empty, err := ndarray.FromSlice(ndarray.Shape{0, 3}, nil, "record", "lat")
	require.NoError(t, err)
	require.NoError(t, w.AddVariable("obs", empty, ndarray.Float64, nil))
	w.SetAttribute("title", "cli test")

	path := filepath.Join(t.TempDir(), "in.grds")
	require.NoError(t, w.WriteFile(path))
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(context.Background(), args, noEnv, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMain_Reductions(t *testing.T) {
	path := writeDataset(t)

	tests := []struct {
		flag   string
		values string
		counts string
	}{
		{"--sum", "[5 7 NaN]", "[2 2 1]"},
		{"--mean", "[2.5 3.5 NaN]", "[2 2 1]"},
		{"--min", "[1 2 3]", "[2 2 1]"},
		{"--max", "[4 5 3]", "[2 2 1]"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			code, out, errOut := run(t, "-f", path, tt.flag, "temperature:time")
			require.Equal(t, ExitOK, code, errOut)
			assert.Contains(t, out, "Shape:  [3]")
			assert.Contains(t, out, "Dims:   lat")
			assert.Contains(t, out, "Counts: "+tt.counts)
			assert.Contains(t, out, "Values: "+tt.values)
		})
	}
}

func TestMain_AxisByIndex(t *testing.T) {
	code, out, _ := run(t, "-f", writeDataset(t), "--sum", "temperature:-2")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Values: [5 7 NaN]")
	assert.Contains(t, out, "temperature_sum_over_time")
}

func TestMain_NoMaskKeepsFillValues(t *testing.T) {
	code, out, _ := run(t, "-f", writeDataset(t), "--no-mask", "--no-mmap", "--min", "temperature:time")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Values: [1 2 -999]")
}

func TestMain_WritesOutput(t *testing.T) {
	path := writeDataset(t)
	out := filepath.Join(t.TempDir(), "mean.grds")

	code, stdout, errOut := run(t, "-f", path, "--mean", "temperature:lat", "-o", out)
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, stdout, "saved to "+out)

	r, err := dataset.Open(out)
	require.NoError(t, err)
	defer r.Close()

	arr, err := r.Load("temperature_mean_over_lat", dataset.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, arr.Data()[0])
	assert.True(t, math.IsNaN(arr.Data()[1]))
	assert.Equal(t, []string{"time"}, arr.Dims())

	meta, err := r.Variable("temperature_mean_over_lat")
	require.NoError(t, err)
	assert.Equal(t, "K", meta.Attributes["units"])
}

func TestMain_ListDescribeSummary(t *testing.T) {
	path := writeDataset(t)

	code, out, _ := run(t, "-f", path, "--list-vars")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Dimensions (3):")
	assert.Contains(t, out, "Variables (2):")
	assert.Less(t, strings.Index(out, "obs"), strings.Index(out, "temperature"), "variables are sorted")
	assert.Contains(t, out, "(time=2, lat=3)")

	code, out, _ = run(t, "-f", path, "--describe", "temperature")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Type:       float32")
	assert.Contains(t, out, "Elements:   6")
	assert.Contains(t, out, "Size:       24 B")
	assert.Contains(t, out, "units = K")
	assert.Contains(t, out, "title = cli test")

	code, out, _ = run(t, "-f", path, "--summary", "temperature")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Valid:   5 of 6")
	assert.Contains(t, out, "minimum: 1")
	assert.Contains(t, out, "mean:    3")
	assert.Contains(t, out, "maximum: 5")
	assert.Contains(t, out, "sum:     15")
}

func TestMain_Version(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "gridstat "+Version+"\n", out)
}

func TestMain_ExitCodes(t *testing.T) {
	path := writeDataset(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"usage", []string{"--mean", "temperature:time"}, ExitUsage},
		{"missing file", []string{"-f", filepath.Join(t.TempDir(), "none.grds"), "--list-vars"}, ExitFailure},
		{"unknown variable", []string{"-f", path, "--mean", "salinity:time"}, ExitNotFound},
		{"unknown describe", []string{"-f", path, "--describe", "salinity"}, ExitNotFound},
		{"unknown dimension", []string{"-f", path, "--mean", "temperature:depth"}, ExitNotFound},
		{"axis out of range", []string{"-f", path, "--max", "temperature:5"}, ExitAxis},
		{"empty axis", []string{"-f", path, "--mean", "obs:record"}, ExitAxis},
		{"zero threads", []string{"-f", path, "-t", "0", "--mean", "temperature:time"}, ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, tt.args...)
			assert.Equal(t, tt.want, code, errOut)
			assert.NotEmpty(t, errOut)
		})
	}
}

func TestMain_UnknownDimensionMessage(t *testing.T) {
	_, _, errOut := run(t, "-f", writeDataset(t), "--mean", "temperature:depth")
	assert.Contains(t, errOut, "depth")
	assert.Contains(t, errOut, "temperature")
}

func TestMain_VerboseAndMetrics(t *testing.T) {
	threads := fmt.Sprint(runtime.NumCPU())
	code, out, errOut := run(t, "-f", writeDataset(t), "-v", "-t", threads, "--metrics", "--max", "temperature:time")
	require.Equal(t, ExitOK, code, errOut)

	assert.Contains(t, out, "Logical cores: "+threads)
	assert.Contains(t, out, "Pool workers:  "+threads)
	assert.Contains(t, errOut, "msg=progress")
	assert.Contains(t, errOut, "gridstat_chunks_dispatched_total")
	assert.Contains(t, errOut, `gridstat_reductions_total{kind="max",outcome="ok"} 1`)
	assert.Contains(t, errOut, "gridstat_pool_workers "+threads)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("disk on fire"), ExitFailure},
		{fmt.Errorf("wrap: %w", ErrUsage), ExitUsage},
		{&reduce.Error{Op: "configure", Err: reduce.ErrConfiguration}, ExitUsage},
		{parallel.ErrPoolConfigured, ExitUsage},
		{&dataset.NotFoundError{Kind: "variable", Name: "x"}, ExitNotFound},
		{&reduce.Error{Op: "resolve", Err: reduce.ErrUnknownDimension}, ExitNotFound},
		{reduce.ErrAxisOutOfRange, ExitAxis},
		{reduce.ErrEmptyReductionAxis, ExitAxis},
		{&reduce.Error{Op: "dispatch", Err: reduce.ErrWorkerFailure}, ExitWorkerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

// writeRawDataset writes a file with the given JSON header and an empty
// data section, skipping every check the dataset writer makes.
func writeRawDataset(t *testing.T, headerJSON string) string {
	t.Helper()
	fixed := make([]byte, dataset.FixedHeaderSize)
	copy(fixed, dataset.MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:], dataset.FormatVersion)
	binary.LittleEndian.PutUint64(fixed[16:], uint64(len(headerJSON)))
	sum := sha256.Sum256(nil)
	copy(fixed[dataset.ChecksumOffset:], sum[:])

	b := append(fixed, headerJSON...)
	for len(b)%dataset.HeaderAlignment != 0 {
		b = append(b, 0)
	}
	path := filepath.Join(t.TempDir(), "raw.grds")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestMain_RejectsOverflowingShape(t *testing.T) {
	path := writeRawDataset(t, `{"format_version":1,"dimensions":[{"name":"y","length":4294967296},{"name":"x","length":4294967296}],`+
		`"variables":[{"name":"v","dtype":"float64","dims":["y","x"],"shape":[4294967296,4294967296],"offset":0,"size":0}]}`)

	for _, args := range [][]string{
		{"-f", path, "--mean", "v:y"},
		{"-f", path, "--no-mmap", "--sum", "v:x"},
		{"-f", path, "--summary", "v"},
	} {
		code, _, errOut := run(t, args...)
		assert.Equal(t, ExitFailure, code, errOut)
		assert.Contains(t, errOut, "invalid_shape")
	}
}

func TestMain_RejectsOffsetOverflow(t *testing.T) {
	path := writeRawDataset(t, `{"format_version":1,"dimensions":[{"name":"x","length":1}],`+
		`"variables":[{"name":"v","dtype":"float64","dims":["x"],"shape":[1],"offset":9223372036854775803,"size":8}]}`)

	code, _, errOut := run(t, "-f", path, "--max", "v:x")
	assert.Equal(t, ExitFailure, code, errOut)
	assert.Contains(t, errOut, "out_of_bounds")
}

func TestSummarizeArray_SplitsAcrossWorkers(t *testing.T) {
	pool, err := parallel.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	var (
		mu     sync.Mutex
		chunks []int
	)
	engine := reduce.NewEngine(pool, reduce.WithObserver(reduce.ObserverFuncs{
		OnChunk: func(_ reduce.Chunk, _, total int) {
			mu.Lock()
			chunks = append(chunks, total)
			mu.Unlock()
		},
	}))

	data := make([]float64, 8*16)
	var (
		valid  int
		sum    float64
		lo, hi = math.Inf(1), math.Inf(-1)
	)
	for i := range data {
		if i%5 == 0 {
			data[i] = math.NaN()
			continue
		}
		v := float64(i%7) - 3
		data[i] = v
		valid++
		sum += v
		lo, hi = min(lo, v), max(hi, v)
	}
	arr, err := ndarray.FromSlice(ndarray.Shape{8, 16}, data, "time", "cell")
	require.NoError(t, err)

	s, err := summarizeArray(context.Background(), engine, "v", arr)
	require.NoError(t, err)

	assert.Equal(t, 128, s.Total)
	assert.Equal(t, valid, s.Valid)
	assert.Equal(t, lo, s.Values[reduce.Min])
	assert.Equal(t, hi, s.Values[reduce.Max])
	assert.InDelta(t, sum, s.Values[reduce.Sum], 1e-9)
	assert.InDelta(t, sum/float64(valid), s.Values[reduce.Mean], 1e-9)
	assert.Contains(t, chunks, 4, "leading-axis folds use every worker")
}

func TestSummarizeArray_Edges(t *testing.T) {
	pool, err := parallel.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	engine := reduce.NewEngine(pool)
	ctx := context.Background()

	nan := math.NaN()
	allNaN, err := ndarray.FromSlice(ndarray.Shape{2, 2}, []float64{nan, nan, nan, nan}, "y", "x")
	require.NoError(t, err)
	s, err := summarizeArray(ctx, engine, "v", allNaN)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Valid)
	assert.Nil(t, s.Values)

	empty, err := ndarray.FromSlice(ndarray.Shape{3, 0}, nil, "y", "x")
	require.NoError(t, err)
	s, err = summarizeArray(ctx, engine, "v", empty)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Total)
	assert.Nil(t, s.Values)

	scalar, err := ndarray.FromSlice(ndarray.Shape{}, []float64{7})
	require.NoError(t, err)
	s, err = summarizeArray(ctx, engine, "v", scalar)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Valid)
	assert.Equal(t, 7.0, s.Values[reduce.Mean])

	series, err := ndarray.FromSlice(ndarray.Shape{4}, []float64{2, nan, -1, 5}, "time")
	require.NoError(t, err)
	s, err = summarizeArray(ctx, engine, "v", series)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Valid)
	assert.Equal(t, -1.0, s.Values[reduce.Min])
	assert.Equal(t, 5.0, s.Values[reduce.Max])
	assert.Equal(t, 6.0, s.Values[reduce.Sum])
	assert.Equal(t, 2.0, s.Values[reduce.Mean])
}

func TestMain_Slice(t *testing.T) {
	path := writeDataset(t)

	code, out, errOut := run(t, "-f", path, "--slice", "temperature:0:2,lat:1:3")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Source: [2 3]")
	assert.Contains(t, out, "Ranges: time=0:2,lat=1:3")
	assert.Contains(t, out, "Shape:  [2 2]")
	assert.Contains(t, out, "Values: [2 3 5 NaN]")
	assert.Contains(t, out, "Valid:   3 of 4")
	assert.Contains(t, out, "minimum: 2")
	assert.Contains(t, out, "maximum: 5")
	assert.Contains(t, out, "sum:     10")

	code, out, errOut = run(t, "-f", path, "--no-mmap", "--slice", "temperature:1:2")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Ranges: time=1:2,lat=0:3")
	assert.Contains(t, out, "Values: [4 5 NaN]")
}

func TestMain_SliceWritesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cut.grds")
	code, stdout, errOut := run(t, "-f", writeDataset(t), "--slice", "temperature:1:2,lat:0:2", "-o", out)
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, stdout, "saved to "+out)

	r, err := dataset.OpenMmap(out)
	require.NoError(t, err)
	defer r.Close()

	arr, err := r.Load("temperature", dataset.DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, ndarray.Shape{1, 2}, arr.Shape())
	assert.Equal(t, []string{"time", "lat"}, arr.Dims())
	assert.Equal(t, []float64{4, 5}, arr.Data())

	meta, err := r.Variable("temperature")
	require.NoError(t, err)
	assert.Equal(t, "time=1:2,lat=0:2", meta.Attributes[dataset.AttrSlice])
	assert.Equal(t, "K", meta.Attributes["units"])
}

func TestMain_SliceErrors(t *testing.T) {
	path := writeDataset(t)

	tests := []struct {
		name    string
		arg     string
		want    int
		message string
	}{
		{"end past length", "temperature:0:3", ExitAxis, "invalid slice"},
		{"empty range", "temperature:1:1", ExitAxis, "invalid slice"},
		{"named range past length", "temperature:0:1,lat:2:4", ExitAxis, `\"lat\"`},
		{"empty dimension", "obs:0:1", ExitAxis, "invalid slice"},
		{"unknown dimension", "temperature:0:1,depth:0:1", ExitNotFound, "depth"},
		{"first dimension twice", "temperature:0:1,time:0:1", ExitUsage, "sliced twice"},
		{"unknown variable", "salinity:0:1", ExitNotFound, "salinity"},
		{"malformed", "temperature:x:1", ExitUsage, "invalid start index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, "-f", path, "--slice", tt.arg)
			assert.Equal(t, tt.want, code, errOut)
			assert.Contains(t, errOut, tt.message)
		})
	}
}
