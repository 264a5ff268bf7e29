package console

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/robmorgan/lightplan/calibrate"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/show"
	"k8s.io/utils/clock"
)

const (
	maxLogLines   = 8
	logBuffer     = 256
	progressWidth = 50
	tickInterval  = 100 * time.Millisecond
)

// Controller is the part of show.Host the console drives.
type Controller interface {
	StartRun() error
	StopRun()
	NudgeRuntime(deltaMs int64)
	RuntimeAdjust() int64
	StreamDelay() int64
	SetStreamDelay(ms int64)
	Connect() error
	Disconnect()
	ChatState() chat.State
	Plan() *cuelist.CueList
	Updates() <-chan show.Update
	Send(text string)
}

type logLine struct {
	text string
	lvl  logger.Level
}

type model struct {
	ctrl  Controller
	probe *calibrate.Probe
	logs  <-chan logLine

	spinner  spinner.Model
	progress progress.Model

	now        time.Time
	runStarted time.Time
	running    bool
	fired      int
	total      int
	next       *cuelist.ProgressEvent
	lastLateMs int64
	lastFired  bool
	lastReason string

	chatState    chat.State
	retryPrompt  bool
	disconnected bool

	logLines []logLine
	quitting bool
}

func newModel(ctrl Controller, logs <-chan logLine, clk clock.PassiveClock) model {
	s := spinner.New()
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressWidth),
		progress.WithoutPercentage(),
	)

	total := 0
	if plan := ctrl.Plan(); plan != nil {
		total = plan.Len()
	}

	return model{
		ctrl:      ctrl,
		probe:     calibrate.NewProbe(ctrl, clk),
		logs:      logs,
		spinner:   s,
		progress:  p,
		total:     total,
		chatState: ctrl.ChatState(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick, waitForUpdate(m.ctrl.Updates()), waitForLog(m.logs))
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type updateMsg struct {
	update show.Update
}

// waitForUpdate delivers the next host update to Update.
func waitForUpdate(updates <-chan show.Update) tea.Cmd {
	return func() tea.Msg {
		return updateMsg{update: <-updates}
	}
}

type logMsg logLine

func waitForLog(logs <-chan logLine) tea.Cmd {
	if logs == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-logs
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}
