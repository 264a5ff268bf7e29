package console

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/engine/scale"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/utils"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	dimStyle    = helpStyle.Copy().UnsetMargins()
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	debugStyle  = dimStyle.Copy()
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	appStyle    = lipgloss.NewStyle().Margin(1, 2, 0, 2)

	onTime = colorful.Color{R: 0.2, G: 0.85, B: 0.35}
	late   = colorful.Color{R: 0.95, G: 0.2, B: 0.2}

	// driftScale maps lateness onto [0,1]; anything a second or more off is fully red.
	driftScale = scale.ToUnitClamp(0, 1000)
)

// driftColor fades from green to red as a cue goes out further from its target time.
func driftColor(lateMs int64) lipgloss.Color {
	t := ease.OutQuad(driftScale(math.Abs(float64(lateMs))))
	return lipgloss.Color(onTime.BlendLab(late, t).Clamped().Hex())
}

func chatStateStyle(s chat.State) lipgloss.Style {
	switch s {
	case chat.StateJoined:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case chat.StateConnecting:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	case chat.StateFailed:
		return errorStyle
	default:
		return dimStyle
	}
}

func (m model) elapsed() time.Duration {
	if !m.running || m.runStarted.IsZero() {
		return 0
	}
	return m.now.Sub(m.runStarted)
}

func (m model) View() string {
	var b strings.Builder

	name := "no plan loaded"
	if plan := m.ctrl.Plan(); plan != nil {
		name = plan.Name
	}
	b.WriteString(titleStyle.Render("lightplan") + "  " + name + "\n\n")

	b.WriteString("Chat: " + chatStateStyle(m.chatState).Render(m.chatState.String()))
	if m.chatState == chat.StateConnecting {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.fired) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString(fmt.Sprintf("  %d/%d cues\n", m.fired, m.total))

	switch {
	case m.running:
		b.WriteString(fmt.Sprintf("Elapsed: %s\n", utils.SecsToStr(m.elapsed().Seconds(), true)))
		if m.next != nil {
			remaining := m.next.NextFireSeconds - m.elapsed().Seconds()
			b.WriteString(fmt.Sprintf("Next: %s in %s\n", m.next.NextCommand, utils.SecsToStr(math.Max(remaining, 0), true)))
		}
	case m.lastReason != "":
		b.WriteString(m.lastReason + "\n")
	default:
		b.WriteString(dimStyle.Render("Idle") + "\n")
	}
	if m.lastFired {
		style := lipgloss.NewStyle().Foreground(driftColor(m.lastLateMs))
		b.WriteString("Last cue: " + style.Render(fmt.Sprintf("%+d ms", m.lastLateMs)) + "\n")
	}

	b.WriteString(fmt.Sprintf("\nStream delay: %d ms   Runtime adjust: %+d ms\n", m.ctrl.StreamDelay(), m.ctrl.RuntimeAdjust()))
	if m.probe.Running() {
		b.WriteString(promptStyle.Render(fmt.Sprintf("Measuring delay: %s (press p when it shows on stream)",
			utils.SecsToStr(m.probe.Elapsed().Seconds(), true))) + "\n")
	}
	if m.retryPrompt {
		b.WriteString(promptStyle.Render("Chat connection lost. Retry? (y/n)") + "\n")
	}

	if len(m.logLines) > 0 {
		b.WriteString("\n")
		for _, line := range m.logLines {
			b.WriteString(renderLog(line) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("(g)o (s)top ([,]) adjust -/+ (c)onnect (x) disconnect (p)robe delay\n\nPress q to exit\n"))

	if m.quitting {
		b.WriteString("\n")
	}
	return appStyle.Render(b.String())
}

func renderLog(line logLine) string {
	switch line.lvl {
	case logger.LevelError:
		return errorStyle.Render(line.text)
	case logger.LevelDebug:
		return debugStyle.Render(line.text)
	default:
		return line.text
	}
}
