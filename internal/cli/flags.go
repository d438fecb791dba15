package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/gridstat/internal/parallel"
	"github.com/born-ml/gridstat/internal/reduce"
)

// EnvThreads supplies a default thread count when -threads is absent.
const EnvThreads = "GRIDSTAT_THREADS"

// ErrUsage marks invalid command lines.
var ErrUsage = errors.New("usage error")

// ActionType selects what an invocation does.
type ActionType int

// Actions.
const (
	ActionNone ActionType = iota
	ActionReduce
	ActionListVars
	ActionDescribe
	ActionSummary
	ActionSlice
	ActionVersion
)

// Action is the single operation requested on the command line.
type Action struct {
	Type     ActionType
	Kind     reduce.Kind // ActionReduce only.
	Variable string
	Axis     reduce.AxisRef // ActionReduce only.
	Ranges   []DimRange     // ActionSlice only.
}

// DimRange selects [Start, End) along a dimension. An empty Dim stands for
// the variable's first dimension.
type DimRange struct {
	Dim        string
	Start, End int
}

// Config is a parsed command line.
type Config struct {
	File    string
	Output  string
	Threads parallel.Threads
	Verbose bool
	NoMmap  bool
	NoMask  bool
	Metrics bool
	Action  Action
	actions int
}

// ParseVarDim splits "variable:dimension". The dimension is a name or an
// integer axis index.
func ParseVarDim(s string) (string, reduce.AxisRef, error) {
	variable, dim, ok := strings.Cut(s, ":")
	if !ok || variable == "" || dim == "" || strings.Contains(dim, ":") {
		return "", reduce.AxisRef{}, fmt.Errorf("%w: expected variable:dimension, got %q", ErrUsage, s)
	}
	return variable, reduce.ParseAxisRef(dim), nil
}

// ParseSliceSpec splits "variable:start:end[,dimension:start:end...]".
// The first range applies to the variable's first dimension.
func ParseSliceSpec(s string) (string, []DimRange, error) {
	parts := strings.Split(s, ",")

	first := strings.Split(parts[0], ":")
	if len(first) != 3 || first[0] == "" {
		return "", nil, fmt.Errorf("%w: expected variable:start:end[,dimension:start:end...], got %q", ErrUsage, s)
	}
	variable := first[0]
	start, end, err := parseBounds(first[1], first[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: variable %q: %w", ErrUsage, variable, err)
	}
	ranges := []DimRange{{Start: start, End: end}}

	seen := make(map[string]bool, len(parts))
	for _, part := range parts[1:] {
		fields := strings.Split(part, ":")
		if len(fields) != 3 || fields[0] == "" {
			return "", nil, fmt.Errorf("%w: expected dimension:start:end, got %q", ErrUsage, part)
		}
		if seen[fields[0]] {
			return "", nil, fmt.Errorf("%w: dimension %q sliced twice", ErrUsage, fields[0])
		}
		seen[fields[0]] = true
		start, end, err := parseBounds(fields[1], fields[2])
		if err != nil {
			return "", nil, fmt.Errorf("%w: dimension %q: %w", ErrUsage, fields[0], err)
		}
		ranges = append(ranges, DimRange{Dim: fields[0], Start: start, End: end})
	}
	return variable, ranges, nil
}

func parseBounds(start, end string) (int, int, error) {
	lo, err := strconv.Atoi(start)
	if err != nil || lo < 0 {
		return 0, 0, fmt.Errorf("invalid start index %q", start)
	}
	hi, err := strconv.Atoi(end)
	if err != nil || hi < 0 {
		return 0, 0, fmt.Errorf("invalid end index %q", end)
	}
	return lo, hi, nil
}

// threadsValue keeps "not given" apart from an explicit value.
type threadsValue struct {
	t *parallel.Threads
}

func (v threadsValue) String() string {
	if v.t == nil {
		return ""
	}
	if n, ok := v.t.Value(); ok {
		return strconv.Itoa(n)
	}
	return ""
}

func (v threadsValue) Set(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*v.t = parallel.ThreadsOf(n)
	return nil
}

// reductionValue records a reduction flag as the invocation's action.
type reductionValue struct {
	cfg  *Config
	kind reduce.Kind
}

func (v reductionValue) String() string { return "" }

func (v reductionValue) Set(s string) error {
	variable, axis, err := ParseVarDim(s)
	if err != nil {
		return err
	}
	v.cfg.setAction(Action{Type: ActionReduce, Kind: v.kind, Variable: variable, Axis: axis})
	return nil
}

// variableValue records a variable-only action such as -describe.
type variableValue struct {
	cfg *Config
	typ ActionType
}

func (v variableValue) String() string { return "" }

func (v variableValue) Set(s string) error {
	if s == "" {
		return errors.New("empty variable name")
	}
	v.cfg.setAction(Action{Type: v.typ, Variable: s})
	return nil
}

// sliceValue records -slice.
type sliceValue struct {
	cfg *Config
}

func (v sliceValue) String() string { return "" }

func (v sliceValue) Set(s string) error {
	variable, ranges, err := ParseSliceSpec(s)
	if err != nil {
		return err
	}
	v.cfg.setAction(Action{Type: ActionSlice, Variable: variable, Ranges: ranges})
	return nil
}

func (c *Config) setAction(a Action) {
	c.actions++
	c.Action = a
}

func newFlagSet(cfg *Config, listVars *bool, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("gridstat", flag.ContinueOnError)
	fs.SetOutput(output)

	for _, name := range []string{"f", "file"} {
		fs.StringVar(&cfg.File, name, "", "Input dataset (.grds)")
	}
	for _, name := range []string{"o", "output"} {
		fs.StringVar(&cfg.Output, name, "", "Write the result to this .grds file instead of printing it")
	}
	for _, name := range []string{"t", "threads"} {
		fs.Var(threadsValue{&cfg.Threads}, name, "Worker threads (default: logical cores, or $"+EnvThreads+")")
	}
	for _, name := range []string{"v", "verbose"} {
		fs.BoolVar(&cfg.Verbose, name, false, "Print system info and progress")
	}

	for _, k := range reduce.Kinds {
		fs.Var(reductionValue{cfg: cfg, kind: k}, k.String(), fmt.Sprintf("Compute the %s over a dimension (var:dim)", k.Label()))
	}
	fs.BoolVar(listVars, "list-vars", false, "List dimensions and variables")
	fs.Var(variableValue{cfg: cfg, typ: ActionDescribe}, "describe", "Describe a variable")
	fs.Var(variableValue{cfg: cfg, typ: ActionSummary}, "summary", "Print min, mean, max and sum of a whole variable")
	fs.Var(sliceValue{cfg: cfg}, "slice", "Extract a sub-array (var:start:end[,dim:start:end...])")

	fs.BoolVar(&cfg.NoMmap, "no-mmap", false, "Read the input with positioned reads instead of mmap")
	fs.BoolVar(&cfg.NoMask, "no-mask", false, "Keep _FillValue cells instead of treating them as missing")
	fs.BoolVar(&cfg.Metrics, "metrics", false, "Dump engine metrics to stderr on exit")
	return fs
}

// ParseArgs parses the command line (without the program name). getenv
// supplies environment lookups.
func ParseArgs(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	if len(args) > 0 && args[0] == "version" {
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: version takes no arguments", ErrUsage)
		}
		return &Config{Action: Action{Type: ActionVersion}}, nil
	}

	cfg := &Config{}
	var listVars bool
	fs := newFlagSet(cfg, &listVars, output)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrUsage, fs.Args())
	}
	if listVars {
		cfg.setAction(Action{Type: ActionListVars})
	}

	switch {
	case cfg.actions == 0:
		return nil, fmt.Errorf("%w: no operation given (use --mean, --sum, --min, --max, --list-vars, --describe, --summary or --slice)", ErrUsage)
	case cfg.actions > 1:
		return nil, fmt.Errorf("%w: exactly one operation per invocation, got %d", ErrUsage, cfg.actions)
	case cfg.File == "":
		return nil, fmt.Errorf("%w: --file is required", ErrUsage)
	case cfg.Output != "" && cfg.Action.Type != ActionReduce && cfg.Action.Type != ActionSlice:
		return nil, fmt.Errorf("%w: --output only applies to reductions and slices", ErrUsage)
	}

	if _, set := cfg.Threads.Value(); !set {
		if env := strings.TrimSpace(getenv(EnvThreads)); env != "" {
			n, err := strconv.Atoi(env)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrUsage, EnvThreads, env)
			}
			cfg.Threads = parallel.ThreadsOf(n)
		}
	}
	return cfg, nil
}
