package reduce

import (
	"fmt"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// Result is a finished reduction.
//
// Values has the reduced axis removed: an input of rank r yields rank r-1,
// and a rank-1 input yields a rank-0 (single element) array. Counts holds,
// per output cell, how many non-NaN inputs contributed.
type Result struct {
	Variable string
	Kind     Kind
	Axis     int
	AxisName string // Empty when the input dimensions are anonymous.
	Values   *ndarray.Array
	Counts   []int
	Chunks   int // Number of chunks the work was split into.
}

// Shape returns the shape of the reduced array.
func (r *Result) Shape() ndarray.Shape {
	return r.Values.Shape()
}

// Dims returns the dimension names that survived the reduction.
func (r *Result) Dims() []string {
	return r.Values.Dims()
}

// OutputName derives the name the result is exported under,
// e.g. "temperature_mean_over_time".
func (r *Result) OutputName() string {
	axis := r.AxisName
	if axis == "" {
		axis = fmt.Sprintf("axis%d", r.Axis)
	}
	variable := r.Variable
	if variable == "" {
		variable = "array"
	}
	return fmt.Sprintf("%s_%s_over_%s", variable, r.Kind.Label(), axis)
}

// assemble packages merged buffers into a Result.
func assemble(req Request, src *ndarray.Array, axis int, values []float64, counts []int, chunks int) (*Result, error) {
	shape := src.Shape().Without(axis)

	var dims []string
	var axisName string
	if names := src.Dims(); len(names) > 0 {
		axisName = names[axis]
		dims = make([]string, 0, len(names)-1)
		for i, name := range names {
			if i != axis {
				dims = append(dims, name)
			}
		}
	}

	out, err := ndarray.FromSlice(shape, values, dims...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to assemble result: %w", ErrInvalidArray, err)
	}

	return &Result{
		Variable: req.Variable,
		Kind:     req.Kind,
		Axis:     axis,
		AxisName: axisName,
		Values:   out,
		Counts:   counts,
		Chunks:   chunks,
	}, nil
}
