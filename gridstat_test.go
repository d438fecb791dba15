// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package gridstat_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gridstat"
)

func ExampleEngine_Reduce() {
	pool, _ := gridstat.NewPool(2)
	defer pool.Close()

	a, _ := gridstat.NewArray(gridstat.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}, "row", "col")
	res, err := gridstat.NewEngine(pool).Reduce(context.Background(), a, gridstat.Request{
		Variable: "v",
		Kind:     gridstat.Mean,
		Axis:     gridstat.AxisByName("col"),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.OutputName(), res.Values.Data(), res.Counts)
	// Output: v_mean_over_col [2 5] [3 3]
}

func TestFacade(t *testing.T) {
	pool, err := gridstat.NewPool(3)
	require.NoError(t, err)
	defer pool.Close()

	a, err := gridstat.NewArray(gridstat.Shape{3, 2}, []float64{1, math.NaN(), 3, 4, 5, 6}, "time", "x")
	require.NoError(t, err)

	engine := gridstat.NewEngine(pool, gridstat.WithWorkers(2))
	res, err := engine.Reduce(context.Background(), a, gridstat.Request{Kind: gridstat.Max, Axis: gridstat.AxisByName("time")})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, res.Values.Data())
	assert.Equal(t, []int{3, 2}, res.Counts)

	_, err = engine.Reduce(context.Background(), a, gridstat.Request{Kind: gridstat.Sum, Axis: gridstat.AxisByName("depth")})
	assert.ErrorIs(t, err, gridstat.ErrUnknownDimension)

	k, err := gridstat.ParseKind("maximum")
	require.NoError(t, err)
	assert.Equal(t, gridstat.Max, k)

	sub, err := a.Slice([]gridstat.Range{{Start: 1, End: 3}, {Start: 0, End: 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, sub.Data())
	_, err = a.Slice([]gridstat.Range{{Start: 0, End: 4}, {Start: 0, End: 2}})
	assert.ErrorIs(t, err, gridstat.ErrInvalidSlice)

	_, err = gridstat.NewArray(gridstat.Shape{1 << 40, 1 << 40}, nil)
	assert.ErrorIs(t, err, gridstat.ErrShapeOverflow)
}
