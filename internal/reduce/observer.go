package reduce

// State is a phase of a single reduction call.
type State int

// Reduction phases, in order. Failed can follow any of them.
const (
	StateIdle State = iota
	StatePartitioned
	StateDispatched
	StateMerging
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePartitioned:
		return "partitioned"
	case StateDispatched:
		return "dispatched"
	case StateMerging:
		return "merging"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer is notified of state changes and chunk completions.
//
// ChunkCompleted is called from pool workers and must be safe for concurrent
// use. Observers must not block: they run on the reduction's critical path.
type Observer interface {
	StateChanged(s State)
	ChunkCompleted(c Chunk, completed, total int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState func(s State)
	OnChunk func(c Chunk, completed, total int)
}

// StateChanged implements Observer.
func (o ObserverFuncs) StateChanged(s State) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

// ChunkCompleted implements Observer.
func (o ObserverFuncs) ChunkCompleted(c Chunk, completed, total int) {
	if o.OnChunk != nil {
		o.OnChunk(c, completed, total)
	}
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)             {}
func (nopObserver) ChunkCompleted(Chunk, int, int) {}
