// Package controller serializes operator commands and source changes into
// generation starts and stops.
package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jesspatton/livetest/detector"
	"github.com/jesspatton/livetest/reporter"
	"github.com/jesspatton/livetest/session"
)

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Restarting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Restarting:
		return "restarting"
	}
	return "unknown"
}

// Session is the generation driver the controller delegates to.
type Session interface {
	StartGeneration(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
	Exit(ctx context.Context) error
}

// Status is a snapshot of the controller.
type Status struct {
	State        string `json:"state"`
	WatchPaused  bool   `json:"watch_paused"`
	PendingRerun bool   `json:"pending_rerun"`
	Generation   string `json:"generation,omitempty"`
	Generations  int    `json:"generations"`
	LastError    string `json:"last_error,omitempty"`
}

// Controller is the run lifecycle state machine. At most one generation is
// active at a time.
type Controller struct {
	sess Session
	sink reporter.Sink
	log  *slog.Logger

	mu           sync.Mutex
	running      bool
	restarting   bool
	cancelling   bool
	exiting      bool
	watchPaused  bool
	pendingRerun bool
	generation   string
	generations  int
	lastErr      error

	// stopDone is closed when the in-flight stop returns.
	stopDone chan struct{}
	stopErr  error

	done chan struct{}
}

var _ session.Listener = (*Controller)(nil)

// New creates an idle Controller.
func New(sess Session, sink reporter.Sink, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = reporter.SinkFunc(func(reporter.Event) {})
	}
	return &Controller{
		sess: sess,
		sink: sink,
		log:  log.With("component", "controller"),
		done: make(chan struct{}),
	}
}

// Done is closed once Exit completed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run starts a generation unless one is active or watching is paused. It
// returns the error that kept the generation from starting.
func (c *Controller) Run(sourceChanged bool) error {
	return c.run(sourceChanged, "")
}

func (c *Controller) run(sourceChanged bool, path string) error {
	c.mu.Lock()
	if c.watchPaused || c.running || c.exiting {
		c.restarting = false
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.restarting = false
	c.pendingRerun = false
	c.mu.Unlock()

	if sourceChanged {
		c.sink.Emit(reporter.Event{Kind: reporter.SourceChanged, Path: path})
	} else {
		c.sink.Emit(reporter.Event{Kind: reporter.RunStarting})
	}
	recordGenerationRequest(sourceChanged)

	id, err := c.sess.StartGeneration(context.Background())
	if err != nil {
		c.log.Error("generation failed to start", "err", err)
		c.mu.Lock()
		c.running = false
		c.lastErr = err
		c.mu.Unlock()
		c.sink.Emit(reporter.Event{Kind: reporter.RunFinished, Err: err})
		return err
	}

	c.mu.Lock()
	c.generation = id
	c.generations++
	c.mu.Unlock()
	return nil
}

// OnChange reacts to a detected source change. A change during a generation
// is remembered as a single pending re-run.
func (c *Controller) OnChange(ev detector.ChangeEvent) {
	c.mu.Lock()
	if c.exiting || c.watchPaused {
		c.mu.Unlock()
		recordChange("ignored")
		return
	}
	if c.running {
		c.pendingRerun = true
		c.mu.Unlock()
		c.log.Debug("change coalesced into pending re-run", "path", ev.Path)
		recordChange("coalesced")
		return
	}
	c.mu.Unlock()

	recordChange("started")
	_ = c.run(true, ev.Path)
}

// Stop stops the active generation and waits for it to unwind. A call made
// while another stop is in flight waits for that stop.
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx)
}

// stop leaves clearing the running state to the session's stopped or finished
// notification, which arrives before sess.Stop returns.
func (c *Controller) stop(ctx context.Context) error {
	c.mu.Lock()
	if c.exiting {
		c.mu.Unlock()
		return nil
	}
	if c.cancelling {
		wait := c.stopDone
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.stopErr
	}
	if !c.running {
		c.mu.Unlock()
		c.sink.Emit(reporter.Event{Kind: reporter.NothingToStop})
		return nil
	}
	c.cancelling = true
	c.stopDone = make(chan struct{})
	c.pendingRerun = false
	c.mu.Unlock()

	c.sink.Emit(reporter.Event{Kind: reporter.RunStopping})
	recordCommand("stop")

	err := c.sess.Stop(ctx)

	c.mu.Lock()
	c.cancelling = false
	c.stopErr = err
	close(c.stopDone)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("stop did not complete", "err", err)
	}
	return err
}

// Restart stops an active generation and starts a new one. Calls made while
// a restart is in progress are no-ops.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	if c.restarting || c.exiting {
		c.mu.Unlock()
		return nil
	}
	c.restarting = true
	running := c.running
	c.mu.Unlock()

	recordCommand("restart")

	if running {
		if err := c.stop(ctx); err != nil {
			c.mu.Lock()
			c.restarting = false
			c.mu.Unlock()
			return err
		}
	}
	return c.run(false, "")
}

// ToggleWatch pauses or resumes reacting to source changes.
func (c *Controller) ToggleWatch() {
	c.mu.Lock()
	c.watchPaused = !c.watchPaused
	enabled := !c.watchPaused
	c.mu.Unlock()

	recordCommand("toggle-watch")
	c.sink.Emit(reporter.Event{Kind: reporter.WatchToggled, WatchEnabled: enabled})
}

// Exit tears the session down. Only the first call does any work.
func (c *Controller) Exit(ctx context.Context) error {
	c.mu.Lock()
	if c.exiting {
		c.mu.Unlock()
		return nil
	}
	c.exiting = true
	c.pendingRerun = false
	c.mu.Unlock()

	recordCommand("exit")
	c.sink.Emit(reporter.Event{Kind: reporter.Exiting})

	err := c.sess.Exit(ctx)

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	close(c.done)

	if err != nil {
		c.log.Error("session exit", "err", err)
	}
	return err
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:        c.state().String(),
		WatchPaused:  c.watchPaused,
		PendingRerun: c.pendingRerun,
		Generation:   c.generation,
		Generations:  c.generations,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Controller) state() State {
	switch {
	case c.exiting:
		return Stopping
	case c.restarting:
		return Restarting
	case c.running:
		return Running
	}
	return Idle
}

// GenerationStarted implements session.Listener.
func (c *Controller) GenerationStarted(id string) {
	c.mu.Lock()
	exiting := c.exiting
	c.mu.Unlock()
	if exiting {
		return
	}
	c.sink.Emit(reporter.Event{Kind: reporter.RunStarted, GenerationID: id})
}

// GenerationFinished implements session.Listener. A pending re-run starts
// right after the finished status.
func (c *Controller) GenerationFinished(res session.Result) {
	c.mu.Lock()
	c.running = false
	c.lastErr = res.Err
	quiet := c.restarting || c.exiting
	rerun := c.pendingRerun && !quiet && !c.watchPaused
	c.pendingRerun = false
	c.mu.Unlock()

	if !quiet {
		c.sink.Emit(reporter.Event{
			Kind:         reporter.RunFinished,
			GenerationID: res.GenerationID,
			Tests:        res.Tests,
			Duration:     res.Duration,
			Err:          res.Err,
		})
	}
	if rerun {
		// Listener calls arrive on engine goroutines that the next
		// generation waits on.
		go func() { _ = c.run(true, "") }()
	}
}

// GenerationStopped implements session.Listener.
func (c *Controller) GenerationStopped(res session.Result) {
	c.mu.Lock()
	c.running = false
	quiet := c.restarting || c.exiting
	c.mu.Unlock()

	if quiet {
		return
	}
	c.sink.Emit(reporter.Event{
		Kind:         reporter.RunStopped,
		GenerationID: res.GenerationID,
		Tests:        res.Tests,
		Duration:     res.Duration,
	})
}
