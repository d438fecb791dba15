package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// Format constants.
const (
	MagicBytes      = "GRDS"
	FormatVersion   = 1
	HeaderAlignment = 64   // Variable data starts on a 64-byte boundary.
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes).
	ChecksumSize    = 32   // SHA-256 checksum size.
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header.
)

// Flags stored in the fixed header.
const (
	FlagHasAttributes uint32 = 1 << 0 // bit 0: global attributes present
)

// Well-known attribute names.
const (
	AttrFillValue = "_FillValue"
	AttrHistory   = "history"
)

// Attributes holds free-form metadata. Values are strings, numbers or lists
// thereof; numbers decode as float64.
type Attributes map[string]any

// Number returns a numeric attribute.
func (a Attributes) Number(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of the attributes.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Header is the JSON header of a .grds file.
type Header struct {
	FormatVersion int            `json:"format_version"`
	CreatedAt     time.Time      `json:"created_at"`
	Dimensions    []Dimension    `json:"dimensions"`
	Variables     []VariableMeta `json:"variables"`
	Attributes    Attributes     `json:"attributes,omitempty"`
}

// Dimension is a named axis length shared by variables.
type Dimension struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// VariableMeta describes a variable stored in the data section.
type VariableMeta struct {
	Name       string     `json:"name"`
	DType      string     `json:"dtype"`
	Dims       []string   `json:"dims"`
	Shape      []int      `json:"shape"`
	Attributes Attributes `json:"attributes,omitempty"`
	Offset     int64      `json:"offset"` // Bytes from the start of the data section.
	Size       int64      `json:"size"`   // Size in bytes.
}

// NumElements returns the number of cells of the variable. The shape must
// have passed ndarray.Shape.Validate.
func (m *VariableMeta) NumElements() int {
	n := 1
	for _, d := range m.Shape {
		n *= d
	}
	return n
}

// storedSize returns the number of bytes the variable's shape needs as dt.
func (m *VariableMeta) storedSize(dt ndarray.DataType) (int64, error) {
	if err := ndarray.Shape(m.Shape).Validate(); err != nil {
		return 0, err
	}
	n, size := int64(m.NumElements()), int64(dt.Size())
	if n > math.MaxInt64/size {
		return 0, fmt.Errorf("%w: shape %v of %s", ndarray.ErrShapeOverflow, m.Shape, dt)
	}
	return n * size, nil
}

// extent returns the end of the variable's byte range within a data section
// of dataSize bytes.
func (m *VariableMeta) extent(dataSize int64) (int64, error) {
	if m.Offset < 0 || m.Size < 0 || m.Offset > dataSize || m.Size > dataSize-m.Offset {
		return 0, fmt.Errorf("%w: variable %q: offset %d, size %d outside data section of %d bytes",
			ErrTruncated, m.Name, m.Offset, m.Size, dataSize)
	}
	return m.Offset + m.Size, nil
}

// Dimension returns a dimension by name.
func (h *Header) Dimension(name string) (Dimension, bool) {
	for _, d := range h.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Variable returns the metadata of a variable by name.
func (h *Header) Variable(name string) (*VariableMeta, error) {
	for i := range h.Variables {
		if h.Variables[i].Name == name {
			return &h.Variables[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "variable", Name: name}
}

// VariableNames returns the variable names in file order.
func (h *Header) VariableNames() []string {
	names := make([]string, len(h.Variables))
	for i, v := range h.Variables {
		names[i] = v.Name
	}
	return names
}

// alignedOffset returns the data section offset for a JSON header of the
// given size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
