// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gridstat computes reductions (sum, mean, minimum, maximum) along
// one axis of dense N-dimensional float64 arrays, in parallel.
//
// # Overview
//
// The output space (every dimension except the reduced one) is split into
// contiguous chunks, one per worker. Each worker folds its chunk along the
// reduced axis and the partial results are copied into place in chunk
// order, so results never depend on the number of workers.
//
// # Basic Usage
//
//	a, _ := gridstat.NewArray(gridstat.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}, "row", "col")
//
//	engine := gridstat.NewEngine(nil) // process-wide pool
//	res, err := engine.Reduce(ctx, a, gridstat.Request{
//	    Variable: "v",
//	    Kind:     gridstat.Mean,
//	    Axis:     gridstat.AxisByName("col"),
//	})
//	// res.Values.Data() == [2 5]
//
// # Missing Values
//
// NaN marks a missing cell. Min and Max skip NaN; Sum and Mean propagate it.
// Result.Counts reports how many non-NaN inputs fed each output cell.
//
// # Thread Pool
//
// The process-wide pool is sized once. Call ConfigurePool before the first
// reduction to choose its size; later requests for a different size fail.
package gridstat
