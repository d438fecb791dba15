package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/gridstat/internal/dataset"
	"github.com/born-ml/gridstat/internal/ndarray"
	"github.com/born-ml/gridstat/internal/parallel"
	"github.com/born-ml/gridstat/internal/reduce"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDims(dims []string, shape []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%s=%d", d, shape[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func printInfo(w io.Writer, info parallel.Info, workers int) {
	fmt.Fprintln(w, "System:")
	fmt.Fprintf(w, "  Logical cores: %d\n", info.LogicalCores)
	fmt.Fprintf(w, "  GOMAXPROCS:    %d\n", info.GOMAXPROCS)
	fmt.Fprintf(w, "  Max workers:   %d\n", info.MaxWorkers)
	fmt.Fprintf(w, "  Pool workers:  %d\n", workers)
	features := "none detected"
	if len(info.Features) > 0 {
		features = strings.Join(info.Features, " ")
	}
	fmt.Fprintf(w, "  CPU features:  %s\n", features)
}

func listVariables(w io.Writer, h dataset.Header) {
	dims := slices.Clone(h.Dimensions)
	slices.SortFunc(dims, func(a, b dataset.Dimension) int { return strings.Compare(a.Name, b.Name) })
	vars := slices.Clone(h.Variables)
	slices.SortFunc(vars, func(a, b dataset.VariableMeta) int { return strings.Compare(a.Name, b.Name) })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Dimensions (%d):\n", len(dims))
	for _, d := range dims {
		fmt.Fprintf(tw, "  %s\t%d\n", d.Name, d.Length)
	}
	fmt.Fprintf(tw, "\nVariables (%d):\n", len(vars))
	for _, v := range vars {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", v.Name, v.DType, formatDims(v.Dims, v.Shape))
	}
	_ = tw.Flush()
}

func describeVariable(w io.Writer, h dataset.Header, v *dataset.VariableMeta) {
	fmt.Fprintf(w, "Variable: %s\n", v.Name)
	fmt.Fprintf(w, "  Type:       %s\n", v.DType)
	fmt.Fprintf(w, "  Dimensions: %s\n", formatDims(v.Dims, v.Shape))
	fmt.Fprintf(w, "  Elements:   %d\n", v.NumElements())
	fmt.Fprintf(w, "  Size:       %s\n", formatBytes(v.Size))
	// Decoded size, not the on-disk one.
	fmt.Fprintf(w, "  In memory:  %s\n", formatBytes(int64(v.NumElements()*ndarray.Float64.Size())))
	printAttributes(w, "  ", v.Attributes)

	if len(h.Attributes) > 0 {
		fmt.Fprintln(w, "Global attributes:")
		printAttributes(w, "  ", h.Attributes)
	}
}

func printAttributes(w io.Writer, indent string, attrs dataset.Attributes) {
	if len(attrs) == 0 {
		return
	}
	fmt.Fprintf(w, "%sAttributes:\n", indent)
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		fmt.Fprintf(w, "%s  %s = %v\n", indent, k, attrs[k])
	}
}

func printResult(w io.Writer, res *reduce.Result) {
	fmt.Fprintf(w, "Computed %s array: %s\n", res.Kind.Label(), res.OutputName())
	fmt.Fprintf(w, "  Shape:  %s\n", res.Shape())
	if dims := res.Dims(); len(dims) > 0 {
		fmt.Fprintf(w, "  Dims:   %s\n", strings.Join(dims, ", "))
	}
	fmt.Fprintf(w, "  Chunks: %d\n", res.Chunks)

	fmt.Fprintf(w, "  Values: [%s]\n", formatValues(res.Values.Data()))

	counts := make([]string, len(res.Counts))
	for i, c := range res.Counts {
		counts[i] = strconv.Itoa(c)
	}
	fmt.Fprintf(w, "  Counts: [%s]\n", strings.Join(counts, " "))
}

type summary struct {
	Variable string
	Total    int
	Valid    int
	Values   map[reduce.Kind]float64 // Nil when no cell is valid.
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "Summary of %s:\n", s.Variable)
	fmt.Fprintf(w, "  Valid:   %d of %d\n", s.Valid, s.Total)
	for _, k := range []reduce.Kind{reduce.Min, reduce.Mean, reduce.Max, reduce.Sum} {
		value := "n/a"
		if s.Values != nil {
			value = formatFloat(s.Values[k])
		}
		fmt.Fprintf(w, "  %-8s %s\n", k.Label()+":", value)
	}
}

// maxPrintedSlice is the largest slice whose values are printed.
const maxPrintedSlice = 20

// formatRanges renders ranges as "time=0:2,lat=1:3".
func formatRanges(dims []string, ranges []ndarray.Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		name := fmt.Sprintf("dim%d", i)
		if i < len(dims) {
			name = dims[i]
		}
		parts[i] = fmt.Sprintf("%s=%v", name, r)
	}
	return strings.Join(parts, ",")
}

func printSlice(w io.Writer, variable string, src, sub *ndarray.Array, ranges []ndarray.Range) {
	fmt.Fprintf(w, "Slice of %s:\n", variable)
	fmt.Fprintf(w, "  Source: %s\n", src.Shape())
	fmt.Fprintf(w, "  Ranges: %s\n", formatRanges(src.Dims(), ranges))
	fmt.Fprintf(w, "  Shape:  %s\n", sub.Shape())
	if sub.Len() <= maxPrintedSlice {
		fmt.Fprintf(w, "  Values: [%s]\n", formatValues(sub.Data()))
	}
}
