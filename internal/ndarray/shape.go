package ndarray

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeOverflow is returned when the element count of a shape does not
// fit in an int.
var ErrShapeOverflow = errors.New("element count overflows int")

// Shape represents the dimensions of an array.
type Shape []int

// NumElements returns the total number of elements in the array.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that no dimension is negative and that NumElements does
// not overflow.
//
// Zero-length dimensions are allowed: an unlimited record dimension with no
// records is a legitimate dataset, it just cannot be reduced over.
func (s Shape) Validate() error {
	n := 1
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
		if dim > 0 && n > math.MaxInt/dim {
			return fmt.Errorf("%w: shape %v", ErrShapeOverflow, s)
		}
		n *= dim
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Without returns the shape with dimension axis removed.
func (s Shape) Without(axis int) Shape {
	out := make(Shape, 0, len(s)-1)
	for i, dim := range s {
		if i != axis {
			out = append(out, dim)
		}
	}
	return out
}

// Split decomposes the shape around axis into the product of the dimensions
// before it (outer), its own length, and the product after it (inner).
//
// For a row-major buffer, element (o, k, i) lives at o*n*inner + k*inner + i.
func (s Shape) Split(axis int) (outer, n, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= s[i]
	}
	for i := axis + 1; i < len(s); i++ {
		inner *= s[i]
	}
	return outer, s[axis], inner
}

// String formats the shape as [d0 d1 ...].
func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}
