package session

import (
	"sync"
	"time"

	"github.com/jesspatton/livetest/engine"
)

type runState int

const (
	runCreated runState = iota
	runRunning
	runWaitingForDone
	runDone
)

func (s runState) String() string {
	switch s {
	case runCreated:
		return "created"
	case runRunning:
		return "running"
	case runWaitingForDone:
		return "waiting-for-done"
	case runDone:
		return "done"
	}
	return "unknown"
}

type testState int

const (
	testCreated testState = iota
	testRunning
	testDone
)

// runWrapper is the bookkeeping for one test on one browser. It lives in the
// manager's side-table keyed by run ID.
type runWrapper struct {
	run   engine.Run
	test  *testWrapper
	state runState

	// stopped is set by the stop handle; later commands are rejected.
	stopped  bool
	roleInit bool

	gate     chan struct{}
	gateOnce sync.Once
}

func newRunWrapper(run engine.Run, tw *testWrapper) *runWrapper {
	return &runWrapper{
		run:  run,
		test: tw,
		gate: make(chan struct{}),
	}
}

// stop is the run's stop handle.
func (rw *runWrapper) stop() {
	rw.stopped = true
}

// finish marks the run done and collects it for gate release. The gate itself
// is closed outside the manager lock.
func (rw *runWrapper) finish(out []*runWrapper) []*runWrapper {
	rw.state = runDone
	return append(out, rw)
}

func (rw *runWrapper) release() {
	rw.gateOnce.Do(func() { close(rw.gate) })
}

type testWrapper struct {
	test  engine.Test
	gen   *generation
	state testState
	runs  []*runWrapper
}

func (tw *testWrapper) count(s runState) int {
	n := 0
	for _, rw := range tw.runs {
		if rw.state == s {
			n++
		}
	}
	return n
}

func (tw *testWrapper) allDone() bool {
	return tw.count(runDone) == len(tw.runs)
}

// generation is one pass of the suite across all browsers.
type generation struct {
	id       string
	started  time.Time
	browsers int

	expected int
	tests    map[string]*testWrapper
	order    []*testWrapper
	runCount int

	stopRequested bool
	runStarted    bool
	// terminal is set once GenerationFinished or GenerationStopped was chosen.
	terminal bool

	handle engine.Handle
	// reported is closed once the terminal listener call returned.
	reported chan struct{}
	unwound  chan struct{}
}

func newGeneration(id string, browsers int) *generation {
	return &generation{
		id:       id,
		started:  time.Now(),
		browsers: browsers,
		tests:    make(map[string]*testWrapper),
		reported: make(chan struct{}),
		unwound:  make(chan struct{}),
	}
}

func (g *generation) testWrapper(t engine.Test) *testWrapper {
	tw, ok := g.tests[t.ID]
	if !ok {
		tw = &testWrapper{test: t, gen: g}
		g.tests[t.ID] = tw
		g.order = append(g.order, tw)
	}
	return tw
}

// hasPendingWork reports whether runs of this generation are still expected
// to start, either because the engine has not created them yet or because
// they are created but not started.
func (g *generation) hasPendingWork() bool {
	if g.browsers > 0 && g.runCount < g.expected*g.browsers {
		return true
	}
	if len(g.order) < g.expected {
		return true
	}
	for _, tw := range g.order {
		if tw.count(runCreated) > 0 {
			return true
		}
	}
	return false
}

func (g *generation) allDone() bool {
	for _, tw := range g.order {
		if tw.state != testDone {
			return false
		}
	}
	return true
}

func (g *generation) result(err error) Result {
	return Result{
		GenerationID: g.id,
		Tests:        len(g.order),
		Err:          err,
		Duration:     time.Since(g.started),
	}
}

// releaseWaiting finishes every run still holding its gate.
func (g *generation) releaseWaiting(out []*runWrapper) []*runWrapper {
	for _, tw := range g.order {
		for _, rw := range tw.runs {
			if rw.state == runWaitingForDone {
				out = rw.finish(out)
			}
		}
	}
	return out
}

func (g *generation) waitingCount() int {
	n := 0
	for _, tw := range g.order {
		n += tw.count(runWaitingForDone)
	}
	return n
}
