package ndarray

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a buffer length does not match a shape.
var ErrShapeMismatch = errors.New("buffer length does not match shape")

// Array is an owned, dense, row-major float64 buffer with a shape and
// optional dimension names.
type Array struct {
	shape Shape
	dims  []string
	data  []float64
}

// DimIndex maps dimension names to axis indexes.
type DimIndex map[string]int

// New allocates a zero-filled array.
func New(shape Shape, dims ...string) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return FromSlice(shape, make([]float64, shape.NumElements()), dims...)
}

// FromSlice wraps data without copying it.
//
// dims is either empty (anonymous dimensions) or holds one name per dimension.
func FromSlice(shape Shape, data []float64, dims ...string) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v (%d elements)",
			ErrShapeMismatch, len(data), shape, shape.NumElements())
	}
	if len(dims) != 0 && len(dims) != len(shape) {
		return nil, fmt.Errorf("got %d dimension names for rank %d", len(dims), len(shape))
	}
	a := &Array{shape: shape.Clone(), data: data}
	if len(dims) > 0 {
		a.dims = append([]string(nil), dims...)
	}
	return a, nil
}

// Shape returns the array's shape.
func (a *Array) Shape() Shape {
	return a.shape
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.shape)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// Data returns the underlying buffer.
func (a *Array) Data() []float64 {
	return a.data
}

// Dims returns the dimension names, or nil if the dimensions are anonymous.
func (a *Array) Dims() []string {
	return a.dims
}

// DimIndex builds the name to axis mapping for the array's dimensions.
func (a *Array) DimIndex() DimIndex {
	idx := make(DimIndex, len(a.dims))
	for i, name := range a.dims {
		idx[name] = i
	}
	return idx
}

// Validate checks the buffer length against the shape.
func (a *Array) Validate() error {
	if err := a.shape.Validate(); err != nil {
		return err
	}
	if len(a.data) != a.shape.NumElements() {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(a.data), a.shape)
	}
	return nil
}

// At returns the element at the given coordinates.
func (a *Array) At(coords ...int) (float64, error) {
	if len(coords) != len(a.shape) {
		return 0, fmt.Errorf("got %d coordinates for rank %d", len(coords), len(a.shape))
	}
	strides := a.shape.ComputeStrides()
	off := 0
	for i, c := range coords {
		if c < 0 || c >= a.shape[i] {
			return 0, fmt.Errorf("coordinate %d out of range for dimension %d (size %d)", c, i, a.shape[i])
		}
		off += c * strides[i]
	}
	return a.data[off], nil
}

// Flatten returns a rank-1 view over the same buffer, with a single dimension
// called name.
func (a *Array) Flatten(name string) *Array {
	return &Array{
		shape: Shape{len(a.data)},
		dims:  []string{name},
		data:  a.data,
	}
}
