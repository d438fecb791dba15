package reduce

import (
	"fmt"
	"math"
)

// layout describes how one reduced axis sits inside a row-major buffer:
// element k of output cell j lives at
//
//	(j/inner)*n*inner + k*inner + j%inner
type layout struct {
	n     int // Length of the reduced axis.
	inner int // Product of the dimensions after the axis (axis stride).
}

// partial is the folded state of one chunk. For Mean, values holds sums and
// is normalized during the merge.
type partial struct {
	chunk  Chunk
	values []float64
	counts []int
}

func newPartial(c Chunk) *partial {
	return &partial{
		chunk:  c,
		values: make([]float64, c.Len()),
		counts: make([]int, c.Len()),
	}
}

// kernel folds every cell of a chunk along the reduced axis.
type kernel func(data []float64, l layout, c Chunk) (*partial, error)

// kernelFor picks the fold for k. The choice is made once per request.
func kernelFor(k Kind) (kernel, error) {
	switch k {
	case Sum, Mean:
		return foldSum, nil
	case Min:
		return foldExtreme(func(v, best float64) bool { return v < best }), nil
	case Max:
		return foldExtreme(func(v, best float64) bool { return v > best }), nil
	default:
		return nil, fmt.Errorf("%w: unknown reduction kind %d", ErrConfiguration, int(k))
	}
}

// forEachRow visits the chunk one source row at a time.
//
// Cells sharing the same outer index are contiguous in both the output and,
// for a fixed position k along the axis, in the source. fn receives the
// offset of the first cell within the chunk and the matching source slice.
// Rows arrive in increasing k for every cell, so each cell is folded in axis
// order regardless of how the output space was partitioned.
func forEachRow(data []float64, l layout, c Chunk, fn func(off int, row []float64)) {
	for j := c.Start; j < c.End; {
		o, i0 := j/l.inner, j%l.inner
		runEnd := min(c.End, (o+1)*l.inner)
		width := runEnd - j
		base := o*l.n*l.inner + i0
		for k := 0; k < l.n; k++ {
			start := base + k*l.inner
			fn(j-c.Start, data[start:start+width])
		}
		j = runEnd
	}
}

// foldSum accumulates with Neumaier compensation. NaN propagates through the
// sum; counts record how many non-NaN values each cell saw.
func foldSum(data []float64, l layout, c Chunk) (*partial, error) {
	if l.n == 0 {
		return nil, ErrEmptyReductionAxis
	}

	p := newPartial(c)
	comp := make([]float64, c.Len())
	forEachRow(data, l, c, func(off int, row []float64) {
		sums := p.values[off : off+len(row)]
		comps := comp[off : off+len(row)]
		counts := p.counts[off : off+len(row)]
		for x, v := range row {
			if !math.IsNaN(v) {
				counts[x]++
			}
			sums[x], comps[x] = neumaierAdd(sums[x], comps[x], v)
		}
	})

	for x, s := range p.values {
		p.values[x] = compensated(s, comp[x])
	}
	return p, nil
}

// neumaierAdd adds v to the running sum and folds the rounding error of the
// addition into comp.
func neumaierAdd(sum, comp, v float64) (float64, float64) {
	t := sum + v
	if math.Abs(sum) >= math.Abs(v) {
		comp += (sum - t) + v
	} else {
		comp += (v - t) + sum
	}
	return t, comp
}

// compensated applies the correction term. A non-finite sum is returned as
// is: the correction is meaningless once an infinity or NaN entered.
func compensated(sum, comp float64) float64 {
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return sum
	}
	return sum + comp
}

// foldExtreme keeps, per cell, the first non-NaN value for which better
// reports true against everything seen before it. Cells without any non-NaN
// value stay NaN with a count of 0.
func foldExtreme(better func(v, best float64) bool) kernel {
	return func(data []float64, l layout, c Chunk) (*partial, error) {
		if l.n == 0 {
			return nil, ErrEmptyReductionAxis
		}

		p := newPartial(c)
		for x := range p.values {
			p.values[x] = math.NaN()
		}
		forEachRow(data, l, c, func(off int, row []float64) {
			best := p.values[off : off+len(row)]
			counts := p.counts[off : off+len(row)]
			for x, v := range row {
				if math.IsNaN(v) {
					continue
				}
				if counts[x] == 0 || better(v, best[x]) {
					best[x] = v
				}
				counts[x]++
			}
		})
		return p, nil
	}
}
