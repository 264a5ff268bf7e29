// Package console is the interactive terminal front end for a show.Host.
package console

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robmorgan/lightplan/logger"
	"k8s.io/utils/clock"
)

// Run shows the console until the operator quits or ctx is cancelled. While it runs, log output is
// redirected from stderr to the console's log pane.
func Run(ctx context.Context, ctrl Controller) error {
	logs := make(chan logLine, logBuffer)
	logger.SetOutput(io.Discard)
	logger.AddHook(logger.NewSinkHook(func(msg string, lvl logger.Level) {
		select {
		case logs <- logLine{text: msg, lvl: lvl}:
		default:
		}
	}))
	defer func() {
		logger.ResetHooks()
		logger.SetOutput(os.Stderr)
	}()

	p := tea.NewProgram(newModel(ctrl, logs, clock.RealClock{}), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
