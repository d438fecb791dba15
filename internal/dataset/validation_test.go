package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gridstat/internal/ndarray"
)

func validHeader() *Header {
	return &Header{
		FormatVersion: FormatVersion,
		Dimensions:    []Dimension{{Name: "time", Length: 4}, {Name: "lat", Length: 2}},
		Variables: []VariableMeta{
			{Name: "t", DType: "float32", Dims: []string{"time", "lat"}, Shape: []int{4, 2}, Offset: 0, Size: 32},
			{Name: "lat", DType: "float64", Dims: []string{"lat"}, Shape: []int{2}, Offset: 32, Size: 16},
		},
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"temperature", false},
		{"sea_surface_temp", false},
		{"t2m.mean", false},
		{"", true},
		{"var:dim", true},
		{"a/b", true},
		{`a\b`, true},
		{"nul\x00byte", true},
		{" padded", true},
		{strings.Repeat("x", MaxNameLen+1), true},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.wantErr {
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr, "name %q", tt.name)
		} else {
			assert.NoError(t, err, "name %q", tt.name)
		}
	}
}

func TestValidateHeader(t *testing.T) {
	require.NoError(t, ValidateHeader(validHeader(), 48, ValidationStrict))

	tests := []struct {
		name     string
		mutate   func(h *Header)
		dataSize int64
		wantType string
	}{
		{"unknown dtype", func(h *Header) { h.Variables[0].DType = "complex128" }, 48, "invalid_dtype"},
		{"rank mismatch", func(h *Header) { h.Variables[0].Dims = []string{"time"} }, 48, "rank_mismatch"},
		{"undeclared dimension", func(h *Header) { h.Variables[1].Dims = []string{"lon"} }, 48, "unknown_dimension"},
		{"dimension length", func(h *Header) { h.Variables[1].Shape = []int{3}; h.Variables[1].Size = 24 }, 72, "dimension_mismatch"},
		{"size mismatch", func(h *Header) { h.Variables[1].Size = 8 }, 48, "size_mismatch"},
		{"duplicate variable", func(h *Header) { h.Variables[1] = h.Variables[0]; h.Variables[1].Offset = 32 }, 64, "duplicate_variable"},
		{"duplicate dimension", func(h *Header) { h.Dimensions = append(h.Dimensions, Dimension{Name: "lat", Length: 2}) }, 48, "duplicate_dimension"},
		{"negative dimension", func(h *Header) { h.Dimensions[0].Length = -1 }, 48, "invalid_dimension"},
		{"out of bounds", func(h *Header) {}, 40, "out_of_bounds"},
		{"overlap", func(h *Header) { h.Variables[1].Offset = 16 }, 48, "offset_overlap"},
		{"negative offset", func(h *Header) { h.Variables[1].Offset = -8 }, 48, "negative_offset"},
		{"element count overflow", func(h *Header) {
			h.Dimensions = []Dimension{{Name: "time", Length: 1 << 32}, {Name: "lat", Length: 1 << 32}}
			h.Variables = h.Variables[:1]
			h.Variables[0].Shape = []int{1 << 32, 1 << 32}
			h.Variables[0].Size = 0
		}, 48, "invalid_shape"},
		{"byte size overflow", func(h *Header) {
			h.Dimensions[0].Length = math.MaxInt/4 + 1
			h.Variables = h.Variables[:1]
			h.Variables[0].DType = "float64"
			h.Variables[0].Dims = []string{"time"}
			h.Variables[0].Shape = []int{math.MaxInt/4 + 1}
		}, 48, "invalid_shape"},
		{"offset overflow", func(h *Header) { h.Variables[1].Offset = math.MaxInt64 - 4 }, 48, "out_of_bounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHeader()
			tt.mutate(h)

			err := ValidateHeader(h, tt.dataSize, ValidationStrict)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantType, verr.Type)
		})
	}
}

func TestValidateHeader_WrapsCause(t *testing.T) {
	h := validHeader()
	h.Dimensions[0].Length = 1 << 32
	h.Dimensions[1].Length = 1 << 32
	h.Variables = h.Variables[:1]
	h.Variables[0].Shape = []int{1 << 32, 1 << 32}
	h.Variables[0].Size = 0
	assert.ErrorIs(t, ValidateHeader(h, 0, ValidationNormal), ndarray.ErrShapeOverflow)

	h = validHeader()
	h.Variables[1].Offset = math.MaxInt64 - 4
	err := ValidateVariableOffsets(h.Variables, 48)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestValidateHeader_Levels(t *testing.T) {
	h := validHeader()
	h.Variables[1].Offset = 16

	assert.Error(t, ValidateHeader(h, 48, ValidationStrict))
	assert.NoError(t, ValidateHeader(h, 48, ValidationNormal))

	h.Variables[0].DType = "bogus"
	assert.Error(t, ValidateHeader(h, 48, ValidationNormal))
	assert.NoError(t, ValidateHeader(h, 48, ValidationNone))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Type: "offset_overlap", Variable: "a", Variable2: "b", Details: "x"}
	assert.Equal(t, `offset_overlap: variables "a" and "b": x`, err.Error())

	err = &ValidationError{Type: "size_mismatch", Variable: "a", Details: "x"}
	assert.Equal(t, `size_mismatch: variable "a": x`, err.Error())
}
