package reduce

import (
	"fmt"
	"strconv"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// AxisRef names the axis to reduce, either by dimension name or by index.
type AxisRef struct {
	name  string
	index int
	byIdx bool
	set   bool
}

// AxisByName refers to an axis by its dimension name.
func AxisByName(name string) AxisRef {
	return AxisRef{name: name, set: true}
}

// AxisByIndex refers to an axis by position. Negative indexes count from
// the last dimension (-1 is the last axis).
func AxisByIndex(i int) AxisRef {
	return AxisRef{index: i, byIdx: true, set: true}
}

// ParseAxisRef treats integers as indexes and everything else as names.
func ParseAxisRef(s string) AxisRef {
	if i, err := strconv.Atoi(s); err == nil {
		return AxisByIndex(i)
	}
	return AxisByName(s)
}

// Name returns the dimension name, if the reference is by name.
func (r AxisRef) Name() (string, bool) {
	return r.name, r.set && !r.byIdx
}

// Index returns the axis index, if the reference is by index.
func (r AxisRef) Index() (int, bool) {
	return r.index, r.byIdx
}

// String formats the reference for error messages.
func (r AxisRef) String() string {
	switch {
	case !r.set:
		return "<unset>"
	case r.byIdx:
		return fmt.Sprintf("axis %d", r.index)
	default:
		return fmt.Sprintf("dimension %q", r.name)
	}
}

// ResolveAxis maps ref onto an axis of shape.
//
// Names are looked up in dims. Indexes must lie in [-rank, rank). The
// resolved axis must have at least one element.
func ResolveAxis(shape ndarray.Shape, dims ndarray.DimIndex, ref AxisRef) (int, error) {
	rank := len(shape)

	var axis int
	switch {
	case !ref.set:
		return 0, fmt.Errorf("%w: no axis given", ErrConfiguration)
	case ref.byIdx:
		axis = ref.index
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			return 0, fmt.Errorf("%w: index %d for rank %d", ErrAxisOutOfRange, ref.index, rank)
		}
	default:
		i, ok := dims[ref.name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDimension, ref.name)
		}
		if i < 0 || i >= rank {
			return 0, fmt.Errorf("%w: dimension %q maps to index %d for rank %d", ErrAxisOutOfRange, ref.name, i, rank)
		}
		axis = i
	}

	if shape[axis] < 1 {
		return 0, fmt.Errorf("%w: axis %d has length %d", ErrEmptyReductionAxis, axis, shape[axis])
	}
	return axis, nil
}
