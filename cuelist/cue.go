package cuelist

// Cue is a single timestamped command in a light plan. Cues are immutable once a run starts.
type Cue struct {
	// Offset is the cue's position on the plan's timeline in milliseconds. It is taken as-is, negative values
	// included; plans are validated by whoever authored them.
	Offset int64

	// Command is sent verbatim to the chat channel when the cue fires.
	Command string

	// Comment is an authoring note. It is never transmitted.
	Comment string

	// IgnoreDelay fires the cue on the broadcast's wall clock instead of subtracting the stream delay, for cues
	// that must land immediately regardless of stream latency.
	IgnoreDelay bool

	// Index is the cue's position in the list as authored. A Runner assigns it when it is constructed so fired
	// cues can be mapped back to their original row.
	Index int
}

// ScheduledCue is a cue with its fire time resolved for one run.
type ScheduledCue struct {
	Cue

	// AdjustedOffset is the fire time in milliseconds from the start of the run, before any runtime adjustment.
	AdjustedOffset int64
}
