package reduce

import (
	"fmt"
	"strings"
)

// Kind selects the reduction applied along the axis.
type Kind int

// Supported reductions.
const (
	Sum Kind = iota
	Mean
	Min
	Max
)

// Kinds lists every reduction kind.
var Kinds = []Kind{Sum, Mean, Min, Max}

// String returns the short name used on the command line.
func (k Kind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Label returns the long name used when naming output variables.
func (k Kind) Label() string {
	switch k {
	case Min:
		return "minimum"
	case Max:
		return "maximum"
	default:
		return k.String()
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k >= Sum && k <= Max
}

// ParseKind accepts both short and long names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "sum":
		return Sum, nil
	case "mean", "avg":
		return Mean, nil
	case "min", "minimum":
		return Min, nil
	case "max", "maximum":
		return Max, nil
	default:
		return 0, fmt.Errorf("%w: unknown reduction kind %q", ErrConfiguration, s)
	}
}
