package cuelist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"k8s.io/utils/clock"
)

// ErrRunnerNotIdle is returned when Start is called on a runner that has already been started or finished.
var ErrRunnerNotIdle = errors.New("cue runner is not idle")

// maxWait caps a single timer wait so far-future cues never overflow a time.Duration.
const maxWait = time.Hour

// Sender delivers the command of a fired cue. Send is called with the runner's stop lock held, so it must not
// call Stop and should return promptly.
type Sender interface {
	Send(text string)
}

// SenderFunc adapts a function to a Sender.
type SenderFunc func(text string)

// Send calls f(text).
func (f SenderFunc) Send(text string) { f(text) }

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the clock used to measure elapsed time. Defaults to the real clock.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithLogger sets the logger entry the runner logs to.
func WithLogger(l *logrus.Entry) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// Runner fires the cues of one run in order of their adjusted offsets. A Runner is single use: once it has
// stopped or completed a new one has to be created.
type Runner struct {
	id     string
	name   string
	clock  clock.Clock
	sender Sender
	log    *logrus.Entry

	// owned by the run goroutine
	queue []ScheduledCue
	total int
	fired int

	runtimeAdjust atomic.Int64
	state         atomic.Int32

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	adjustCh chan struct{}

	events chan Event
	done   chan struct{}
}

// NewRunner copies cues, resolves their fire times and sorts them. An empty cue set produces a runner that
// has already completed with ReasonNoEvents.
func NewRunner(name string, cues []Cue, cfg RunConfig, sender Sender, opts ...RunnerOption) *Runner {
	r := &Runner{
		id:       uuid.NewString(),
		name:     name,
		clock:    clock.RealClock{},
		sender:   sender,
		total:    len(cues),
		stopCh:   make(chan struct{}),
		adjustCh: make(chan struct{}, 1),
		events:   make(chan Event, len(cues)+2),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.GetProjectLogger()
	}
	r.log = r.log.WithFields(logrus.Fields{"run_id": r.id, "cue_list": name})
	r.runtimeAdjust.Store(cfg.RuntimeAdjustMs)

	working := make([]Cue, len(cues))
	copy(working, cues)
	for i := range working {
		working[i].Index = i
	}
	r.queue = Compensate(working, cfg)
	slices.SortStableFunc(r.queue, func(a, b ScheduledCue) bool {
		return a.AdjustedOffset < b.AdjustedOffset
	})

	if len(r.queue) == 0 {
		r.log.Info(ReasonNoEvents)
		r.state.Store(int32(StateCompleted))
		r.events <- DoneEvent{State: StateCompleted, Reason: ReasonNoEvents}
		close(r.events)
		close(r.done)
	}

	return r
}

// ID returns the unique ID of the run, used in log fields.
func (r *Runner) ID() string {
	return r.id
}

// Name returns the name of the cue list being run.
func (r *Runner) Name() string {
	return r.name
}

// State returns the current lifecycle state.
func (r *Runner) State() RunState {
	return RunState(r.state.Load())
}

// Events returns the progress and done notifications of the run, in firing order. The channel is closed
// after the DoneEvent.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Done is closed when the run goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has finished. It blocks forever on a runner that was never started.
func (r *Runner) Wait() {
	<-r.done
}

// RuntimeAdjust returns the runtime adjustment currently in effect, in milliseconds.
func (r *Runner) RuntimeAdjust() int64 {
	return r.runtimeAdjust.Load()
}

// AdjustRuntime replaces the runtime adjustment. It applies from the next firing check on; cues that already
// fired are unaffected.
func (r *Runner) AdjustRuntime(ms int64) {
	r.runtimeAdjust.Store(ms)
	r.log.Debugf("Runtime adjustment: %d ms", ms)

	select {
	case r.adjustCh <- struct{}{}:
	default:
	}
}

// Stop asks the run to end. It does not wait for the run goroutine, but if a cue is being sent it waits for
// that send to return. Once Stop returns no further cue fires and no further progress is reported; unless the
// last cue had already fired, the run ends with ReasonStopped.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
}

// Start begins the run on its own goroutine. Cancelling ctx has the same effect as Stop.
func (r *Runner) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrRunnerNotIdle
	}

	go r.run(ctx)
	return nil
}

func (r *Runner) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// untilDue returns how long to wait before target, zero or less once it is due.
func untilDue(target int64, elapsed time.Duration) time.Duration {
	if target <= elapsed.Milliseconds() {
		return 0
	}
	if target > addMs(elapsed.Milliseconds(), maxWait.Milliseconds()) {
		return maxWait
	}
	return time.Duration(target)*time.Millisecond - elapsed
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	start := r.clock.Now()
	r.log.Infof("Cue list started with %d cues", r.total)

	current := r.pop()
	if !r.emitProgress(-1, current, 0, 0) {
		r.finish(StateStopped, ReasonStopped)
		return
	}

	for {
		if ctx.Err() != nil {
			r.Stop()
		}
		if r.isStopped() {
			r.finish(StateStopped, ReasonStopped)
			return
		}

		target := current.FireAt(r.runtimeAdjust.Load())
		elapsed := r.clock.Since(start)

		if d := untilDue(target, elapsed); d > 0 {
			r.wait(ctx, d)
			continue
		}

		// stop check, send and completion decision share one critical section with Stop
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			r.finish(StateStopped, ReasonStopped)
			return
		}
		lateMs := r.fire(current, elapsed, target)
		last := len(r.queue) == 0
		r.mu.Unlock()

		if last {
			r.finish(StateCompleted, ReasonCompleted)
			return
		}

		current = r.pop()
		if !r.emitProgress(r.fired-1, current, elapsed, lateMs) {
			r.finish(StateStopped, ReasonStopped)
			return
		}
	}
}

// wait blocks until d has passed or something changed the deadline.
func (r *Runner) wait(ctx context.Context, d time.Duration) {
	t := r.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-r.stopCh:
	case <-r.adjustCh:
	case <-t.C():
	}
}

func (r *Runner) pop() ScheduledCue {
	next := r.queue[0]
	r.queue = r.queue[1:]
	metrics.CueBacklogCount.WithLabelValues(r.name).Set(float64(len(r.queue) + 1))
	return next
}

func (r *Runner) fire(c ScheduledCue, elapsed time.Duration, target int64) int64 {
	errorMs := subMs(elapsed.Milliseconds(), target)

	if r.sender != nil {
		r.sender.Send(c.Command)
	}
	r.fired++

	r.log.WithFields(logrus.Fields{
		"cue_index": c.Index,
		"offset_ms": c.AdjustedOffset,
		"error_ms":  errorMs,
	}).Infof("Fired cue %d/%d (%+d ms): %s", r.fired, r.total, errorMs, c.Command)

	drift := float64(errorMs) / 1000
	metrics.CueFiredCount.WithLabelValues(r.name).Inc()
	metrics.CueExecutionDrift.WithLabelValues(r.name).Set(drift)
	if drift < 0 {
		drift = -drift
	}
	metrics.CueDriftHistogram.Observe(drift)
	return errorMs
}

// emitProgress reports the next cue. It returns false, without emitting, once Stop has been called.
func (r *Runner) emitProgress(firedIndex int, next ScheduledCue, elapsed time.Duration, lateMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}

	r.events <- ProgressEvent{
		FiredIndex:      firedIndex,
		Fired:           r.fired,
		Total:           r.total,
		NextFireSeconds: float64(next.FireAt(r.runtimeAdjust.Load())) / 1000,
		NextCommand:     next.Command,
		NextIndex:       next.Index,
		Elapsed:         elapsed,
		FiredLateMs:     lateMs,
	}
	return true
}

func (r *Runner) finish(state RunState, reason string) {
	r.state.Store(int32(state))

	metrics.CueBacklogCount.WithLabelValues(r.name).Set(0)
	metrics.RunsFinished.WithLabelValues(state.String()).Inc()
	r.log.WithField("fired", r.fired).Info(reason)

	r.events <- DoneEvent{
		State:  state,
		Reason: reason,
		Fired:  r.fired,
		Total:  r.total,
	}
	close(r.events)
}
