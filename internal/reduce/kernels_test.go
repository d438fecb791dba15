package reduce

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// foldAll runs kind over a single-cell axis holding values.
func foldAll(t *testing.T, k Kind, values ...float64) (float64, int) {
	t.Helper()
	fold, err := kernelFor(k)
	require.NoError(t, err)

	p, err := fold(values, layout{n: len(values), inner: 1}, Chunk{Start: 0, End: 1})
	require.NoError(t, err)
	v := p.values[0]
	if k == Mean {
		v /= float64(len(values))
	}
	return v, p.counts[0]
}

func TestKernels_NaNPolicy(t *testing.T) {
	nan := math.NaN()

	v, n := foldAll(t, Min, 1, nan, 3)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 2, n)

	v, n = foldAll(t, Max, 1, nan, 3)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 2, n)

	v, n = foldAll(t, Sum, 1, nan, 3)
	assert.True(t, math.IsNaN(v))
	assert.Equal(t, 2, n)

	v, _ = foldAll(t, Mean, 1, nan, 3)
	assert.True(t, math.IsNaN(v))
}

func TestKernels_AllNaN(t *testing.T) {
	nan := math.NaN()
	for _, k := range Kinds {
		v, n := foldAll(t, k, nan, nan, nan)
		assert.True(t, math.IsNaN(v), "%s", k)
		assert.Zero(t, n, "%s", k)
	}
}

func TestKernels_Infinities(t *testing.T) {
	inf := math.Inf(1)

	v, n := foldAll(t, Max, 1, inf, 3)
	assert.Equal(t, inf, v)
	assert.Equal(t, 3, n)

	v, _ = foldAll(t, Min, -inf, 0, math.NaN())
	assert.Equal(t, -inf, v)

	v, _ = foldAll(t, Sum, 1, inf, 2)
	assert.Equal(t, inf, v)

	v, _ = foldAll(t, Sum, inf, -inf)
	assert.True(t, math.IsNaN(v))
}

func TestKernels_CompensatedSum(t *testing.T) {
	// Naive left-to-right summation loses the small terms entirely.
	values := []float64{1e16, 1, 1, 1, 1, -1e16}
	v, _ := foldAll(t, Sum, values...)
	assert.Equal(t, 4.0, v)

	// 0.1 added a million times.
	many := make([]float64, 1_000_000)
	for i := range many {
		many[i] = 0.1
	}
	v, _ = foldAll(t, Sum, many...)
	assert.InDelta(t, 100000.0, v, 1e-9)
}

func TestKernels_EmptyAxis(t *testing.T) {
	for _, k := range Kinds {
		fold, err := kernelFor(k)
		require.NoError(t, err)
		_, err = fold(nil, layout{n: 0, inner: 1}, Chunk{Start: 0, End: 1})
		assert.ErrorIs(t, err, ErrEmptyReductionAxis, "%s", k)
	}
}

func TestKernelFor_Unknown(t *testing.T) {
	_, err := kernelFor(Kind(42))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestForEachRow_ChunkInsideAndAcrossRows(t *testing.T) {
	// Shape [2, 3, 4] reduced over axis 1: outer=2, n=3, inner=4, 8 cells.
	data := make([]float64, 24)
	for i := range data {
		data[i] = float64(i)
	}
	l := layout{n: 3, inner: 4}

	// Cells 2..6 span the end of outer row 0 and the start of outer row 1.
	var got [][]float64
	forEachRow(data, l, Chunk{Start: 2, End: 6}, func(off int, row []float64) {
		got = append(got, append([]float64{float64(off)}, row...))
	})

	want := [][]float64{
		{0, 2, 3}, {0, 6, 7}, {0, 10, 11}, // cells 2,3 over k = 0..2
		{2, 12, 13}, {2, 16, 17}, {2, 20, 21}, // cells 4,5 over k = 0..2
	}
	assert.Equal(t, want, got)
}
