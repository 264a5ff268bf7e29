package cuelist

import (
	"github.com/robmorgan/lightplan/logger"
)

// CueList stores a light plan: the cues and the timeline marker they are relative to.
type CueList struct {
	ID     int64
	Name   string
	Title  string
	Artist string
	Author string

	// StartingOffsetMs is the plan's own start marker; it is subtracted from every cue so the start event
	// becomes offset zero.
	StartingOffsetMs int64

	Cues []Cue
}

func NewCueList(cueListName string) *CueList {
	logger := logger.GetProjectLogger()
	logger.Debugf("Cue list created with name: %s", cueListName)

	return &CueList{
		Name: cueListName,
		Cues: make([]Cue, 0),
	}
}

// NewCue appends a cue to the list.
func (cl *CueList) NewCue(offset int64, command, comment string, ignoreDelay bool) {
	cl.Cues = append(cl.Cues, Cue{
		Offset:      offset,
		Command:     command,
		Comment:     comment,
		IgnoreDelay: ignoreDelay,
		Index:       len(cl.Cues),
	})
}

// Len returns the number of cues in the list.
func (cl *CueList) Len() int {
	return len(cl.Cues)
}

// RunConfig returns the run configuration for this list with the given delay settings.
func (cl *CueList) RunConfig(streamDelayMs, runtimeAdjustMs int64) RunConfig {
	return RunConfig{
		StreamDelayMs:    streamDelayMs,
		StartingOffsetMs: cl.StartingOffsetMs,
		RuntimeAdjustMs:  runtimeAdjustMs,
	}
}
