package console

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/robmorgan/lightplan/calibrate"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/config"
	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/show"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case updateMsg:
		m.handleUpdate(msg.update)
		return m, waitForUpdate(m.ctrl.Updates())
	case logMsg:
		m.addLog(logLine(msg))
		return m, waitForLog(m.logs)
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.retryPrompt {
		switch msg.String() {
		case "y":
			m.retryPrompt = false
			m.connect()
			return m, nil
		case "n":
			m.retryPrompt = false
			return m, nil
		}
	}

	switch msg.String() {
	case "g":
		if err := m.ctrl.StartRun(); err != nil {
			m.addLog(logLine{text: err.Error(), lvl: logger.LevelError})
		}
	case "s":
		m.ctrl.StopRun()
	case "[":
		m.ctrl.NudgeRuntime(-config.RuntimeAdjustStepMs)
	case "]":
		m.ctrl.NudgeRuntime(config.RuntimeAdjustStepMs)
	case "c":
		m.connect()
	case "x":
		m.disconnected = true
		m.ctrl.Disconnect()
	case "p":
		m.toggleProbe()
	case "q", "ctrl+c":
		m.quitting = true
		m.ctrl.StopRun()
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) connect() {
	m.disconnected = false
	if err := m.ctrl.Connect(); err != nil {
		m.addLog(logLine{text: err.Error(), lvl: logger.LevelError})
		return
	}
	m.chatState = m.ctrl.ChatState()
}

// toggleProbe sends a calibration command on the first press and stores the measured delay on the second.
func (m *model) toggleProbe() {
	if !m.probe.Running() {
		m.probe.Send(calibrate.DefaultCommands[0])
		return
	}

	delay, err := m.probe.Stop()
	if err != nil {
		m.addLog(logLine{text: err.Error(), lvl: logger.LevelError})
		return
	}
	m.ctrl.SetStreamDelay(delay)
	m.addLog(logLine{text: fmt.Sprintf("Stream delay set to %d ms", delay), lvl: logger.LevelInfo})
}

func (m *model) handleUpdate(u show.Update) {
	switch u := u.(type) {
	case show.RunUpdate:
		switch evt := u.Event.(type) {
		case cuelist.ProgressEvent:
			if evt.FiredIndex < 0 {
				m.runStarted = m.now.Add(-evt.Elapsed)
				m.lastFired = false
			} else {
				m.lastLateMs = evt.FiredLateMs
				m.lastFired = true
			}
			m.running = true
			m.fired = evt.Fired
			m.total = evt.Total
			next := evt
			m.next = &next
			m.lastReason = ""
		case cuelist.DoneEvent:
			m.running = false
			m.fired = evt.Fired
			m.total = evt.Total
			m.next = nil
			m.lastReason = evt.Reason
		}
	case show.ChatUpdate:
		m.chatState = m.ctrl.ChatState()
		switch u.Event.Type {
		case chat.EventJoined:
			m.retryPrompt = false
		case chat.EventConnectFailed, chat.EventDisconnected:
			m.retryPrompt = !u.Retrying && !m.disconnected
		}
	}
}

func (m *model) addLog(line logLine) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}
