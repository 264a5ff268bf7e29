// Package show hosts a light plan: it owns the chat connection and the cue runner, routes fired cues to
// whichever chat client is current and reports everything that happens as Updates.
package show

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/config"
	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/utils"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var (
	// ErrNoPlan is returned by StartRun before a plan has been loaded.
	ErrNoPlan = errors.New("no light plan loaded")
	// ErrRunActive is returned by StartRun while a run is in progress.
	ErrRunActive = errors.New("a run is already in progress")
	// ErrNoCredentials is returned by Connect when the chat username or channel is missing.
	ErrNoCredentials = errors.New("chat username and channel must be configured")
	// ErrClosed is returned once the host has been closed.
	ErrClosed = errors.New("host is closed")
)

const updateBuffer = 64

// Option configures a Host.
type Option func(*Host)

// WithClock sets the clock used by runs and retry delays.
func WithClock(c clock.Clock) Option {
	return func(h *Host) {
		h.clock = c
	}
}

// WithDialer sets the dialer chat clients are created with.
func WithDialer(d chat.Dialer) Option {
	return func(h *Host) {
		h.dialer = d
	}
}

// WithAutoRetry makes the host reconnect on its own, up to the configured number of retries. Without it a
// failed connection is only reported and the front end decides whether to Connect again.
func WithAutoRetry() Option {
	return func(h *Host) {
		h.autoRetry = true
	}
}

// Host owns the chat client and the runner of the current run.
type Host struct {
	cfg       config.Config
	clock     clock.Clock
	dialer    chat.Dialer
	autoRetry bool
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	plan          *cuelist.CueList
	client        *chat.Client
	wantConnected bool
	attempts      int
	runner        *cuelist.Runner
	streamDelayMs int64
	runtimeAdjust int64

	updates chan Update
}

// New creates a host for cfg. Nothing connects until Connect is called.
func New(cfg config.Config, opts ...Option) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		cfg:           cfg,
		clock:         clock.RealClock{},
		log:           logger.GetProjectLogger().WithField("component", "host"),
		ctx:           ctx,
		cancel:        cancel,
		streamDelayMs: cfg.Run.StreamDelayMs,
		runtimeAdjust: config.ClampRuntimeAdjust(cfg.Run.DelayAdjustMs),
		updates:       make(chan Update, updateBuffer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Updates returns run and chat notifications. The channel is never closed; stop reading after Close.
func (h *Host) Updates() <-chan Update {
	return h.updates
}

// LoadPlan makes cl the plan the next run uses.
func (h *Host) LoadPlan(cl *cuelist.CueList) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.plan = cl
	h.log.Infof("Loaded light plan %q with %d cues", cl.Name, cl.Len())
}

// Plan returns the loaded plan, or nil.
func (h *Host) Plan() *cuelist.CueList {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plan
}

// Send delivers text through the current chat client. It implements cuelist.Sender.
func (h *Host) Send(text string) {
	h.mu.Lock()
	c := h.client
	h.mu.Unlock()

	if c == nil {
		h.log.Warnf("No chat connection, dropping message: %s", text)
		return
	}
	c.Send(text)
}

// ChatState returns the state of the current chat client.
func (h *Host) ChatState() chat.State {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return chat.StateDisconnected
	}
	return h.client.State()
}

// Connect starts a new chat client unless the current one is still connecting or joined.
func (h *Host) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if !h.cfg.ChatCredentialsSet() {
		return ErrNoCredentials
	}
	h.wantConnected = true
	if h.client != nil {
		switch h.client.State() {
		case chat.StateConnecting, chat.StateJoined:
			return nil
		}
	}
	return h.connectLocked()
}

func (h *Host) connectLocked() error {
	var opts []chat.Option
	if h.dialer != nil {
		opts = append(opts, chat.WithDialer(h.dialer))
	}
	c := chat.New(h.cfg.Chat.ClientConfig(), opts...)
	if err := c.Connect(h.ctx); err != nil {
		return err
	}
	h.client = c

	h.wg.Add(1)
	go h.forwardChat(c)
	return nil
}

// Disconnect closes the chat connection and cancels any pending automatic retry.
func (h *Host) Disconnect() {
	h.mu.Lock()
	h.wantConnected = false
	c := h.client
	h.mu.Unlock()

	if c != nil {
		c.Disconnect()
	}
}

func (h *Host) forwardChat(c *chat.Client) {
	defer h.wg.Done()

	for evt := range c.Events() {
		u := ChatUpdate{Event: evt}

		h.mu.Lock()
		current := h.client == c
		switch evt.Type {
		case chat.EventJoined:
			h.attempts = 0
		default:
			if current {
				h.attempts++
			}
		}
		u.Attempt = h.attempts
		retry := current && evt.Type != chat.EventJoined && h.autoRetry && h.wantConnected && !h.closed &&
			h.attempts <= h.cfg.Chat.MaxRetries
		if retry {
			u.Retrying = true
			u.RetryIn = h.cfg.Chat.RetryDelay
			h.wg.Add(1)
			go h.retryAfter(c, h.cfg.Chat.RetryDelay)
		}
		h.mu.Unlock()

		if evt.Type == chat.EventConnectFailed && !retry && current {
			h.log.Errorf("Could not connect to chat after %d attempt(s)", u.Attempt)
		}
		if !h.publish(u) {
			return
		}
	}
}

func (h *Host) retryAfter(prev *chat.Client, delay time.Duration) {
	defer h.wg.Done()

	h.log.Infof("Reconnecting to chat in %s", delay)
	if delay > 0 {
		select {
		case <-h.ctx.Done():
			return
		case <-h.clock.After(delay):
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || !h.wantConnected || h.client != prev {
		return
	}
	if err := h.connectLocked(); err != nil {
		h.log.Errorf("Reconnect failed: %v", err)
	}
}

// Running reports whether a run is in progress.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runner != nil
}

// StartRun starts the loaded plan from the beginning.
func (h *Host) StartRun() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.plan == nil {
		return ErrNoPlan
	}
	if h.runner != nil {
		return ErrRunActive
	}

	cfg := h.plan.RunConfig(h.streamDelayMs, h.runtimeAdjust)
	for _, early := range cuelist.EarlyCues(h.plan.Cues, cfg) {
		h.log.Warnf("Cue %d (%s at %s) is due before the run starts and will fire immediately",
			early.Index, early.Command, utils.MsToStr(early.Offset, true))
	}

	r := cuelist.NewRunner(h.plan.Name, h.plan.Cues, cfg, h, cuelist.WithClock(h.clock))
	if r.State() == cuelist.StateIdle {
		if err := r.Start(h.ctx); err != nil {
			return err
		}
		h.runner = r
	}

	h.wg.Add(1)
	go h.forwardRun(r)
	return nil
}

func (h *Host) forwardRun(r *cuelist.Runner) {
	defer h.wg.Done()

	for evt := range r.Events() {
		if done, ok := evt.(cuelist.DoneEvent); ok {
			h.mu.Lock()
			if h.runner == r {
				h.runner = nil
			}
			h.runtimeAdjust = 0
			h.mu.Unlock()
			h.log.Infof("Run finished: %s (%d/%d cues fired)", done.Reason, done.Fired, done.Total)
		}
		if !h.publish(RunUpdate{RunID: r.ID(), Event: evt}) {
			return
		}
	}
}

// StopRun stops the current run, if any.
func (h *Host) StopRun() {
	h.mu.Lock()
	r := h.runner
	h.mu.Unlock()

	if r != nil {
		r.Stop()
	}
}

// RuntimeAdjust returns the runtime adjustment in milliseconds.
func (h *Host) RuntimeAdjust() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runtimeAdjust
}

// SetRuntimeAdjust replaces the runtime adjustment, clamped to ±30 s, and applies it to the current run.
func (h *Host) SetRuntimeAdjust(ms int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setRuntimeAdjustLocked(ms)
}

// NudgeRuntime moves the runtime adjustment by deltaMs.
func (h *Host) NudgeRuntime(deltaMs int64) {
	// any step wider than the whole range lands on a limit anyway
	const widest = 2 * config.MaxRuntimeAdjustMs
	if deltaMs > widest {
		deltaMs = widest
	} else if deltaMs < -widest {
		deltaMs = -widest
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.setRuntimeAdjustLocked(h.runtimeAdjust + deltaMs)
}

// setRuntimeAdjustLocked updates the host and the runner together so they never disagree.
func (h *Host) setRuntimeAdjustLocked(ms int64) {
	h.runtimeAdjust = config.ClampRuntimeAdjust(ms)
	if h.runner != nil {
		h.runner.AdjustRuntime(h.runtimeAdjust)
	}
}

// StreamDelay returns the stream delay used by the next run, in milliseconds.
func (h *Host) StreamDelay() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streamDelayMs
}

// SetStreamDelay sets the stream delay for the next run. A run in progress keeps the delay it started with.
func (h *Host) SetStreamDelay(ms int64) {
	if ms < 0 {
		ms = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.streamDelayMs = ms
}

// Close stops the run, disconnects chat and waits for every goroutine the host started.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.wantConnected = false
	r := h.runner
	c := h.client
	h.mu.Unlock()

	if r != nil {
		r.Stop()
	}
	if c != nil {
		c.Disconnect()
	}
	h.cancel()
	h.wg.Wait()

	if r != nil {
		r.Wait()
	}
	if c != nil {
		<-c.Done()
	}
}

func (h *Host) publish(u Update) bool {
	select {
	case h.updates <- u:
		return true
	case <-h.ctx.Done():
		return false
	}
}
