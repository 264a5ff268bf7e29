package cuelist

import "time"

// RunState is the lifecycle of a Runner.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateStopped
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s RunState) Terminal() bool {
	return s == StateStopped || s == StateCompleted
}

const (
	ReasonNoEvents  = "No Events To Process"
	ReasonCompleted = "Cue List Completed"
	ReasonStopped   = "Cue List Stopped"
)

// Event is sent on Runner.Events. It is either a ProgressEvent or a DoneEvent.
type Event interface {
	runEvent()
}

// ProgressEvent is emitted once when a run starts and once after every fire that leaves cues in the queue.
type ProgressEvent struct {
	// FiredIndex is the position, in firing order, of the cue that just fired. It is -1 for the event sent
	// at the start of the run.
	FiredIndex int

	// Fired is the number of cues fired so far.
	Fired int

	// Total is the number of cues in the run.
	Total int

	// NextFireSeconds is when the next cue is due, in seconds from the start of the run, including the
	// runtime adjustment in effect when the event was emitted.
	NextFireSeconds float64

	// NextCommand is the command of the next cue.
	NextCommand string

	// NextIndex is the original index of the next cue.
	NextIndex int

	// Elapsed is the run time at which the event was emitted.
	Elapsed time.Duration

	// FiredLateMs is how late the cue that just fired went out, in milliseconds. Negative is early.
	FiredLateMs int64
}

// DoneEvent is the last event of a run.
type DoneEvent struct {
	State  RunState
	Reason string
	Fired  int
	Total  int
}

func (ProgressEvent) runEvent() {}
func (DoneEvent) runEvent()     {}
