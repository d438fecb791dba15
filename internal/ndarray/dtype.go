package ndarray

import "fmt"

// DataType is the element type a variable is stored with on disk.
// In memory every array is float64.
type DataType int

// Supported storage types.
const (
	Float32 DataType = iota
	Float64
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64, Int64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType converts a storage type name back to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int64":
		return Int64, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", s)
	}
}
