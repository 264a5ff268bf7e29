package logger

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the severity a host sees for a log line. The numeric values match the
// ones stored in saved settings.
type Level int

const (
	LevelInfo  Level = 0
	LevelError Level = 10
	LevelDebug Level = 20
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// LevelFromInt returns the level stored as value, falling back to LevelInfo for unknown values.
func LevelFromInt(value int) Level {
	switch Level(value) {
	case LevelError, LevelDebug:
		return Level(value)
	default:
		return LevelInfo
	}
}

// ParseLevel parses "info", "error" or "debug" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "error":
		return LevelError, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// levelFromLogrus folds logrus' finer levels into the three host severities.
func levelFromLogrus(l logrus.Level) Level {
	switch {
	case l <= logrus.ErrorLevel:
		return LevelError
	case l >= logrus.DebugLevel:
		return LevelDebug
	default:
		return LevelInfo
	}
}
