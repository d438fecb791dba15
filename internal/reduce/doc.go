// Package reduce implements the parallel axis reduction engine.
//
// A reduction collapses one axis of an N-dimensional float64 array with one
// of four kinds: Sum, Mean, Min or Max. The engine runs in phases:
//
//	Idle -> Partitioned -> Dispatched -> Merging -> Complete
//	                (any phase) -> Failed
//
// The axis is resolved (by name or index) and the non-reduced index space is
// split into contiguous chunks, one per worker. Each chunk is folded on the
// worker pool, and the partial results are merged in chunk order.
//
// # Numeric policy
//
//   - Sum uses Neumaier-compensated summation. NaN propagates.
//   - Mean is the compensated sum divided by the axis length. NaN propagates.
//   - Min and Max skip NaN. Infinities compare as ordinary values. A cell
//     whose inputs are all NaN yields NaN.
//
// Every result carries per-cell counts of the non-NaN inputs that contributed.
//
// Each output cell is folded by exactly one worker in axis order, so results
// are bit-identical for any worker count and any scheduling.
//
// # Errors
//
// All errors are *Error values that name the variable and axis and match one
// of ErrUnknownDimension, ErrAxisOutOfRange, ErrEmptyReductionAxis,
// ErrConfiguration, ErrWorkerFailure or ErrInvalidArray with errors.Is. A
// failed reduction never returns a partial result.
//
// Example:
//
//	engine := reduce.NewEngine(nil) // process-wide pool
//	res, err := engine.Reduce(ctx, arr, reduce.Request{
//	    Variable: "temperature",
//	    Kind:     reduce.Mean,
//	    Axis:     reduce.AxisByName("time"),
//	})
package reduce
