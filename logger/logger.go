package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const projectName = "lightplan"

var (
	projectLogger *logrus.Logger
	once          sync.Once
)

func base() *logrus.Logger {
	once.Do(func() {
		projectLogger = logrus.New()
		projectLogger.SetOutput(os.Stderr)
		projectLogger.SetLevel(logrus.InfoLevel)
		projectLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	})
	return projectLogger
}

// GetProjectLogger returns the logger shared by every package in the project.
func GetProjectLogger() *logrus.Entry {
	return base().WithField("name", projectName)
}

// SetLevel changes the level of the project logger.
func SetLevel(lvl Level) {
	base().SetLevel(lvl.logrusLevel())
}

// SetOutput redirects the project logger, e.g. to io.Discard while the console owns the terminal.
func SetOutput(w io.Writer) {
	base().SetOutput(w)
}

// AddHook registers a hook on the project logger.
func AddHook(hook logrus.Hook) {
	base().AddHook(hook)
}

// ResetHooks drops every registered hook.
func ResetHooks() {
	base().ReplaceHooks(make(logrus.LevelHooks))
}
