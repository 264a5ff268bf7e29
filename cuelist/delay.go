package cuelist

import "math"

// RunConfig holds the timing parameters of a single run.
type RunConfig struct {
	// StreamDelayMs is the broadcast transmission delay to compensate for.
	StreamDelayMs int64

	// StartingOffsetMs is subtracted from every cue so the plan's start event lands at zero.
	StartingOffsetMs int64

	// RuntimeAdjustMs is the initial runtime adjustment. It can be changed while the run is in progress and is
	// applied to every firing check rather than baked into the adjusted offsets.
	RuntimeAdjustMs int64
}

// AdjustedOffset returns when c should fire relative to the start of a run. A negative result fires as soon
// as the run starts. Results that would overflow saturate at the int64 limits.
func AdjustedOffset(c Cue, streamDelayMs, startingOffsetMs int64) int64 {
	adjusted := subMs(c.Offset, startingOffsetMs)
	if !c.IgnoreDelay {
		adjusted = subMs(adjusted, streamDelayMs)
	}
	return adjusted
}

// FireAt returns the target of sc from run start once runtimeAdjustMs is applied.
func (sc ScheduledCue) FireAt(runtimeAdjustMs int64) int64 {
	return addMs(sc.AdjustedOffset, runtimeAdjustMs)
}

// addMs adds two millisecond values, saturating instead of wrapping.
func addMs(a, b int64) int64 {
	sum := a + b
	if (sum > a) != (b > 0) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func subMs(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a + math.MaxInt64 + 1
	}
	return addMs(a, -b)
}

// Compensate resolves the adjusted offset of every cue. Order is preserved.
func Compensate(cues []Cue, cfg RunConfig) []ScheduledCue {
	out := make([]ScheduledCue, len(cues))
	for i, c := range cues {
		out[i] = ScheduledCue{
			Cue:            c,
			AdjustedOffset: AdjustedOffset(c, cfg.StreamDelayMs, cfg.StartingOffsetMs),
		}
	}
	return out
}

// EarlyCues returns the cues that would fire at the very start of a run because their adjusted offset is
// negative, e.g. cues authored before the start marker or closer to it than the stream delay.
func EarlyCues(cues []Cue, cfg RunConfig) []ScheduledCue {
	var early []ScheduledCue
	for _, sc := range Compensate(cues, cfg) {
		if sc.AdjustedOffset < 0 {
			early = append(early, sc)
		}
	}
	return early
}
