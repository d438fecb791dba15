package dataset

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
)

// LoadOptions controls how stored values are decoded.
type LoadOptions struct {
	// MaskFill replaces cells equal to the variable's _FillValue with NaN.
	MaskFill bool
	// Parallel controls fan-out of the element decode loop.
	Parallel parallel.Config
}

// DefaultLoadOptions masks fill values and decodes in parallel.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		MaskFill: true,
		Parallel: parallel.DefaultConfig(),
	}
}

// encode converts values to the little-endian byte form of dt.
// Int64 storage truncates toward zero; NaN is not representable there.
func encode(values []float64, dt ndarray.DataType) []byte {
	size := dt.Size()
	buf := make([]byte, len(values)*size)
	for i, v := range values {
		b := buf[i*size:]
		switch dt {
		case ndarray.Float32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case ndarray.Float64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		case ndarray.Int64:
			binary.LittleEndian.PutUint64(b, uint64(int64(v))) //nolint:gosec // G115: two's complement round trip
		}
	}
	return buf
}

// decode turns the stored bytes of meta into a float64 array.
func decode(meta *VariableMeta, raw []byte, opts LoadOptions) (*ndarray.Array, error) {
	dt, err := ndarray.ParseDataType(meta.DType)
	if err != nil {
		return nil, err
	}
	want, err := meta.storedSize(dt)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", meta.Name, err)
	}
	if int64(len(raw)) != want {
		return nil, fmt.Errorf("%w: variable %q has %d bytes, expected %d", ErrTruncated, meta.Name, len(raw), want)
	}
	n := meta.NumElements()

	fill, masked := 0.0, false
	if opts.MaskFill {
		fill, masked = meta.Attributes.Number(AttrFillValue)
	}

	out := make([]float64, n)
	switch dt {
	case ndarray.Float32:
		fill32 := float32(fill)
		parallel.For(n, func(i int) {
			v := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
			if masked && v == fill32 {
				out[i] = math.NaN()
				return
			}
			out[i] = float64(v)
		}, opts.Parallel)
	case ndarray.Float64:
		parallel.For(n, func(i int) {
			v := math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
			if masked && v == fill {
				v = math.NaN()
			}
			out[i] = v
		}, opts.Parallel)
	case ndarray.Int64:
		parallel.For(n, func(i int) {
			v := float64(int64(binary.LittleEndian.Uint64(raw[i*8:]))) //nolint:gosec // G115: two's complement round trip
			if masked && v == fill {
				v = math.NaN()
			}
			out[i] = v
		}, opts.Parallel)
	}

	return ndarray.FromSlice(ndarray.Shape(meta.Shape), out, meta.Dims...)
}
