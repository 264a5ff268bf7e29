package logger

import (
	"github.com/sirupsen/logrus"
)

// SinkFunc receives a formatted log message and its host severity.
type SinkFunc func(msg string, lvl Level)

// SinkHook forwards log entries to a host, e.g. the console's log pane.
type SinkHook struct {
	sink SinkFunc
}

// NewSinkHook creates a hook that calls sink for every entry at or above the logger's level.
func NewSinkHook(sink SinkFunc) *SinkHook {
	return &SinkHook{sink: sink}
}

// Levels implements logrus.Hook.
func (h *SinkHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *SinkHook) Fire(entry *logrus.Entry) error {
	if h.sink == nil {
		return nil
	}
	h.sink(entry.Message, levelFromLogrus(entry.Level))
	return nil
}
