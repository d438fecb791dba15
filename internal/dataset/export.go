package dataset

import (
	"fmt"
	"time"

	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/reduce"
)

// Attributes added to exported results.
const (
	AttrOperation        = "operation"
	AttrReducedDimension = "reduced_dimension"
	AttrSourceVariable   = "source_variable"
	AttrSlice            = "slice"
)

// AddResult appends a reduction result to w as two variables: the reduced
// values, named after res.OutputName, and "<name>_count" holding per-cell
// contribution counts. source, when non-nil, supplies attributes to carry
// over.
func AddResult(w *Writer, res *reduce.Result, source *VariableMeta) error {
	name := res.OutputName()

	attrs := Attributes{}
	if source != nil && source.Attributes != nil {
		attrs = source.Attributes.Clone()
	}
	attrs[AttrOperation] = res.Kind.Label()
	attrs[AttrReducedDimension] = reducedDimension(res)
	attrs[AttrSourceVariable] = res.Variable

	dims := res.Dims()
	if len(dims) == 0 {
		dims = make([]string, res.Values.Rank())
		for i := range dims {
			dims[i] = fmt.Sprintf("%s_dim%d", name, i)
		}
	}
	values, err := ndarray.FromSlice(res.Shape(), res.Values.Data(), dims...)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}
	if err := w.AddVariable(name, values, ndarray.Float64, attrs); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}

	counts := make([]float64, len(res.Counts))
	for i, c := range res.Counts {
		counts[i] = float64(c)
	}
	countArr, err := ndarray.FromSlice(res.Shape(), counts, dims...)
	if err != nil {
		return fmt.Errorf("failed to build counts: %w", err)
	}
	countAttrs := Attributes{
		"long_name":        "number of valid values along " + reducedDimension(res),
		AttrSourceVariable: name,
	}
	if err := w.AddVariable(name+"_count", countArr, ndarray.Int64, countAttrs); err != nil {
		return fmt.Errorf("failed to add %s_count: %w", name, err)
	}
	return nil
}

// WriteResult writes res to a new file at path.
func WriteResult(path string, res *reduce.Result, source *VariableMeta) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := AddResult(w, res, source); err != nil {
		return err
	}
	stampHistory(w)
	return w.Close()
}

// WriteSlice writes sub, cut from the variable name, to a new file at path.
// The variable keeps its name and the attributes of source. ranges
// describes the cut, e.g. "time=0:2,lat=1:3", and is stored as AttrSlice.
func WriteSlice(path, name string, sub *ndarray.Array, source *VariableMeta, ranges string) error {
	attrs := Attributes{}
	if source != nil && source.Attributes != nil {
		attrs = source.Attributes.Clone()
	}
	attrs[AttrSlice] = ranges

	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := w.AddVariable(name, sub, ndarray.Float64, attrs); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	stampHistory(w)
	return w.Close()
}

func stampHistory(w *Writer) {
	w.SetAttribute(AttrHistory, "Created by gridstat on "+time.Now().UTC().Format(time.RFC3339))
}

func reducedDimension(res *reduce.Result) string {
	if res.AxisName != "" {
		return res.AxisName
	}
	return fmt.Sprintf("axis%d", res.Axis)
}
