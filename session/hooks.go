package session

import (
	"github.com/jesspatton/livetest/engine"
)

// hooks is the execution strategy handed to the engine.
type hooks struct {
	m *Manager
}

var _ engine.Hooks = (*hooks)(nil)

var closedGate = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (h *hooks) TaskStarted(testCount int) {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != nil && !m.gen.terminal {
		m.gen.expected = testCount
	}
}

func (h *hooks) RunCreated(run engine.Run) {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.gen
	if gen == nil {
		return
	}
	tw := gen.testWrapper(run.Test())
	rw := newRunWrapper(run, tw)
	tw.runs = append(tw.runs, rw)
	gen.runCount++
	m.runs[run.ID()] = rw

	if gen.stopRequested {
		rw.stop()
	}
}

// RunStarted moves the run and its test to running. A run created before a
// stop request never starts.
func (h *hooks) RunStarted(run engine.Run) error {
	m := h.m
	m.mu.Lock()
	rw := m.runs[run.ID()]
	if rw == nil {
		m.mu.Unlock()
		return nil
	}
	tw := rw.test
	gen := tw.gen

	if gen.stopRequested || rw.stopped {
		rw.state = runDone
		if tw.allDone() {
			tw.state = testDone
		}
		m.mu.Unlock()
		rw.release()
		recordRun("skipped")
		return engine.ErrRunAborted
	}

	rw.state = runRunning
	if tw.state == testCreated {
		tw.state = testRunning
	}
	first := !gen.runStarted
	gen.runStarted = true
	listener := m.listener
	m.mu.Unlock()

	if first {
		m.log.Info("generation running", "generation", gen.id)
		listener.GenerationStarted(gen.id)
	}
	return nil
}

// BeforeCommand rejects commands issued after the run's stop handle fired,
// except the final test-done and anything inside a role initialization.
func (h *hooks) BeforeCommand(run engine.Run, cmd engine.Command) error {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()

	rw := m.runs[run.ID()]
	if rw == nil || !rw.stopped || rw.roleInit || cmd.Type == engine.CommandTestDone {
		return nil
	}
	recordRejectedCommand()
	return engine.ErrRunAborted
}

func (h *hooks) RoleInitializing(run engine.Run, active bool) {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if rw := m.runs[run.ID()]; rw != nil {
		rw.roleInit = active
	}
}

// RunDone unlocks the page right away and returns the gate the engine waits
// on before finalizing the run.
func (h *hooks) RunDone(run engine.Run) <-chan struct{} {
	m := h.m
	m.mu.Lock()
	rw := m.runs[run.ID()]
	if rw == nil {
		m.mu.Unlock()
		return closedGate
	}
	tw := rw.test
	gen := tw.gen
	rw.state = runWaitingForDone

	var (
		release  []*runWrapper
		finished bool
		forced   = gen.stopRequested || rw.stopped
	)

	switch {
	case forced:
		release = rw.finish(release)
		if tw.allDone() {
			tw.state = testDone
		}
	case tw.count(runRunning) == 0 && tw.count(runCreated) == 0:
		tw.state = testDone
		if gen.hasPendingWork() {
			for _, sibling := range tw.runs {
				if sibling.state == runWaitingForDone {
					release = sibling.finish(release)
				}
			}
		} else if gen.allDone() && !gen.terminal {
			gen.terminal = true
			finished = true
		}
	}
	held := gen.waitingCount()
	state := rw.state
	listener := m.listener
	m.mu.Unlock()

	m.log.Debug("run done", "run", run.ID(), "browser", run.Browser(), "state", state, "forced", forced)

	if err := run.Unlock(); err != nil {
		m.log.Debug("page unlock failed", "run", run.ID(), "browser", run.Browser(), "err", err)
	}
	releaseGates(release)
	recordHeldGates(held)

	if forced {
		recordRun("aborted")
	} else {
		recordRun("completed")
	}

	if finished {
		res := gen.result(nil)
		m.log.Info("generation finished", "generation", gen.id, "tests", res.Tests)
		recordGeneration("finished")
		listener.GenerationFinished(res)
		close(gen.reported)
	}
	return rw.gate
}
