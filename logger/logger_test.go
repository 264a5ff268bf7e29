package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}

func TestLevelFromInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelError, LevelFromInt(10))
	assert.Equal(t, LevelDebug, LevelFromInt(20))
	assert.Equal(t, LevelInfo, LevelFromInt(7))
}

func TestSinkHookFoldsLevels(t *testing.T) {
	t.Parallel()

	var got []Level
	hook := NewSinkHook(func(msg string, lvl Level) {
		got = append(got, lvl)
	})

	l := logrus.New()
	l.SetLevel(logrus.TraceLevel)
	for _, lvl := range []logrus.Level{logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel} {
		require.NoError(t, hook.Fire(&logrus.Entry{Logger: l, Level: lvl, Message: "x"}))
	}

	assert.Equal(t, []Level{LevelError, LevelInfo, LevelInfo, LevelDebug, LevelDebug}, got)
}
