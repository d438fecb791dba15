package reduce

import "github.com/born-ml/gridstat/internal/ndarray"

// Chunk is a contiguous range of output cells, [Start, End), in row-major
// order over the non-reduced dimensions. Every chunk carries the full extent
// of the reduced axis.
type Chunk struct {
	Index int // Position in the partition; fixes merge order.
	Start int
	End   int
}

// Len returns the number of output cells in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Partition splits the non-reduced index space of shape into at most workers
// near-equal contiguous chunks.
//
// Chunks are ordered, disjoint, never empty and cover every output cell
// exactly once. Sizes differ by at most one, larger chunks first. Because the
// output space is laid out outermost dimension first, contiguous ranges keep
// each worker on neighbouring rows of the source. The result depends only on
// the arguments.
func Partition(shape ndarray.Shape, axis, workers int) []Chunk {
	cells := shape.Without(axis).NumElements()
	if cells == 0 {
		return nil
	}

	parts := max(workers, 1)
	parts = min(parts, cells)

	base, extra := cells/parts, cells%parts
	chunks := make([]Chunk, parts)
	start := 0
	for i := range chunks {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = Chunk{Index: i, Start: start, End: start + size}
		start += size
	}
	return chunks
}
