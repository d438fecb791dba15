// Package ndarray provides the dense float64 N-dimensional array that the
// reduction engine consumes and produces.
//
// Arrays are row-major and carry optional dimension names, so an axis can be
// addressed either by position or by name:
//
//	a, _ := ndarray.FromSlice(ndarray.Shape{2, 3}, data, "lat", "lon")
//	idx := a.DimIndex()   // {"lat": 0, "lon": 1}
//
// An Array is treated as immutable once handed to the engine. Data exposes
// the underlying buffer without copying; callers must not write to it while a
// reduction is running.
package ndarray
