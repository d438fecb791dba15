package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// Validation limits.
const (
	MaxHeaderSize     = 100 * 1024 * 1024 // 100MB
	MaxVariableCount  = 100_000
	MaxDimensionCount = 10_000
	MaxNameLen        = 1024
)

// ValidationLevel controls the strictness of header validation.
type ValidationLevel int

const (
	// ValidationStrict performs all checks, including data section offsets.
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, dtypes and dimensions only.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateName rejects empty names and names that could not be used as a
// variable or dimension identifier.
func ValidateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	case len(name) > MaxNameLen:
		return &ValidationError{
			Type:     "name_too_long",
			Variable: name[:32] + "...",
			Details:  fmt.Sprintf("length %d > max %d", len(name), MaxNameLen),
		}
	case strings.ContainsAny(name, ":/\\\x00"):
		return &ValidationError{
			Type:     "invalid_name",
			Variable: name,
			Details:  `contains one of ':', '/', '\' or a null byte`,
		}
	case strings.TrimSpace(name) != name:
		return &ValidationError{Type: "invalid_name", Variable: name, Details: "leading or trailing whitespace"}
	}
	return nil
}

// ValidateVariableOffsets checks for overlapping variables and data outside
// the data section.
func ValidateVariableOffsets(vars []VariableMeta, dataSize int64) error {
	sorted := make([]VariableMeta, len(vars))
	copy(sorted, vars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, v := range sorted {
		if v.Offset < 0 || v.Size < 0 {
			return &ValidationError{
				Type:     "negative_offset",
				Variable: v.Name,
				Details:  fmt.Sprintf("offset=%d, size=%d", v.Offset, v.Size),
			}
		}
		if _, err := v.extent(dataSize); err != nil {
			return &ValidationError{
				Type:     "out_of_bounds",
				Variable: v.Name,
				Details:  fmt.Sprintf("offset %d + size %d > data_size %d", v.Offset, v.Size, dataSize),
				Err:      err,
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if v.Offset+v.Size > next.Offset {
				return &ValidationError{
					Type:      "offset_overlap",
					Variable:  v.Name,
					Variable2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						v.Offset, v.Offset+v.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// validateVariable checks a variable against the dimension table.
func validateVariable(v *VariableMeta, dims map[string]int) error {
	if err := ValidateName(v.Name); err != nil {
		return err
	}
	dt, err := ndarray.ParseDataType(v.DType)
	if err != nil {
		return &ValidationError{Type: "invalid_dtype", Variable: v.Name, Details: err.Error()}
	}
	if len(v.Dims) != len(v.Shape) {
		return &ValidationError{
			Type:     "rank_mismatch",
			Variable: v.Name,
			Details:  fmt.Sprintf("%d dimension names for rank %d", len(v.Dims), len(v.Shape)),
		}
	}
	want, err := v.storedSize(dt)
	if err != nil {
		return &ValidationError{Type: "invalid_shape", Variable: v.Name, Details: err.Error(), Err: err}
	}
	for i, name := range v.Dims {
		length, ok := dims[name]
		if !ok {
			return &ValidationError{
				Type:     "unknown_dimension",
				Variable: v.Name,
				Details:  fmt.Sprintf("dimension %q is not declared", name),
			}
		}
		if length != v.Shape[i] {
			return &ValidationError{
				Type:     "dimension_mismatch",
				Variable: v.Name,
				Details:  fmt.Sprintf("dimension %q has length %d, shape says %d", name, length, v.Shape[i]),
			}
		}
	}
	if v.Size != want {
		return &ValidationError{
			Type:     "size_mismatch",
			Variable: v.Name,
			Details:  fmt.Sprintf("size %d bytes, shape %v of %s needs %d", v.Size, v.Shape, v.DType, want),
		}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Variables) > MaxVariableCount {
		return &ValidationError{
			Type:    "too_many_variables",
			Details: fmt.Sprintf("got %d, max %d", len(h.Variables), MaxVariableCount),
		}
	}
	if len(h.Dimensions) > MaxDimensionCount {
		return &ValidationError{
			Type:    "too_many_dimensions",
			Details: fmt.Sprintf("got %d, max %d", len(h.Dimensions), MaxDimensionCount),
		}
	}

	dims := make(map[string]int, len(h.Dimensions))
	for _, d := range h.Dimensions {
		if err := ValidateName(d.Name); err != nil {
			return err
		}
		if d.Length < 0 {
			return &ValidationError{Type: "invalid_dimension", Details: fmt.Sprintf("dimension %q has negative length %d", d.Name, d.Length)}
		}
		if _, dup := dims[d.Name]; dup {
			return &ValidationError{Type: "duplicate_dimension", Details: fmt.Sprintf("dimension %q declared twice", d.Name)}
		}
		dims[d.Name] = d.Length
	}

	seen := make(map[string]struct{}, len(h.Variables))
	for i := range h.Variables {
		v := &h.Variables[i]
		if err := validateVariable(v, dims); err != nil {
			return err
		}
		if _, dup := seen[v.Name]; dup {
			return &ValidationError{Type: "duplicate_variable", Variable: v.Name, Details: "declared twice"}
		}
		seen[v.Name] = struct{}{}
	}

	if level == ValidationStrict {
		if err := ValidateVariableOffsets(h.Variables, dataSize); err != nil {
			return err
		}
	}
	return nil
}
