package ndarray

import (
	"errors"
	"fmt"
)

// ErrInvalidSlice is returned when a range does not select a non-empty part
// of its dimension.
var ErrInvalidSlice = errors.New("invalid slice")

// Range selects the half-open interval [Start, End) of one dimension.
type Range struct {
	Start, End int
}

// Len returns the number of indexes selected.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

// Full returns ranges selecting every index of every dimension.
func (s Shape) Full() []Range {
	ranges := make([]Range, len(s))
	for i, dim := range s {
		ranges[i] = Range{End: dim}
	}
	return ranges
}

// Slice copies the sub-array selected by ranges, one per dimension. Every
// range must satisfy 0 <= Start < End <= length. Dimension names are kept.
func (a *Array) Slice(ranges []Range) (*Array, error) {
	if len(ranges) != len(a.shape) {
		return nil, fmt.Errorf("%w: %d ranges for rank %d", ErrInvalidSlice, len(ranges), len(a.shape))
	}
	shape := make(Shape, len(ranges))
	for i, r := range ranges {
		if r.Start < 0 || r.Start >= r.End || r.End > a.shape[i] {
			return nil, fmt.Errorf("%w: range %v for dimension %s of length %d",
				ErrInvalidSlice, r, a.dimLabel(i), a.shape[i])
		}
		shape[i] = r.Len()
	}
	if len(shape) == 0 {
		return FromSlice(shape, []float64{a.data[0]})
	}

	// Copy one run of the last dimension per step of an odometer over the
	// leading dimensions.
	strides := a.shape.ComputeStrides()
	last := len(shape) - 1
	idx := make([]int, last)
	out := make([]float64, 0, shape.NumElements())
	for {
		off := ranges[last].Start
		for d, i := range idx {
			off += (ranges[d].Start + i) * strides[d]
		}
		out = append(out, a.data[off:off+shape[last]]...)

		d := last - 1
		for ; d >= 0; d-- {
			if idx[d]++; idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			break
		}
	}
	return FromSlice(shape, out, a.dims...)
}

func (a *Array) dimLabel(i int) string {
	if len(a.dims) > 0 {
		return fmt.Sprintf("%q", a.dims[i])
	}
	return fmt.Sprint(i)
}
