// Package calibrate measures the stream delay: a test command is sent to chat and a stopwatch runs until the
// operator sees its effect on the stream.
package calibrate

import (
	"errors"
	"sync"
	"time"

	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// DefaultCommands are the test commands offered to the operator. Each one has an effect that is easy to spot.
var DefaultCommands = []string{"!dim", "!normal", "!arctic"}

// ErrNotRunning is returned by Stop when no measurement is in progress.
var ErrNotRunning = errors.New("no delay measurement in progress")

// Probe is a stopwatch started by sending a command.
type Probe struct {
	mu      sync.Mutex
	clock   clock.PassiveClock
	sender  cuelist.Sender
	log     *logrus.Entry
	started time.Time
	command string
	running bool
}

// NewProbe creates a probe that sends through sender. A nil clk uses the real clock.
func NewProbe(sender cuelist.Sender, clk clock.PassiveClock) *Probe {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Probe{
		clock:  clk,
		sender: sender,
		log:    logger.GetProjectLogger().WithField("component", "calibrate"),
	}
}

// Send delivers command and (re)starts the stopwatch.
func (p *Probe) Send(command string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sender.Send(command)
	p.started = p.clock.Now()
	p.command = command
	p.running = true
	p.log.Infof("Sent %s, waiting for it to show on stream", command)
}

// Running reports whether the stopwatch is running.
func (p *Probe) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Elapsed returns the time since the last Send, or 0 when nothing is being measured.
func (p *Probe) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0
	}
	return p.clock.Since(p.started)
}

// Stop ends the measurement and returns the delay rounded to the nearest millisecond.
func (p *Probe) Stop() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0, ErrNotRunning
	}
	p.running = false

	elapsed := p.clock.Since(p.started)
	delayMs := elapsed.Round(time.Millisecond).Milliseconds()
	p.log.Infof("Measured stream delay for %s: %d ms", p.command, delayMs)
	return delayMs, nil
}
