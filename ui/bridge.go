package ui

import (
	"bytes"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jesspatton/livetest/engine"
	"github.com/jesspatton/livetest/reporter"
)

// Messages

// EventMsg carries a lifecycle event from the controller.
type EventMsg reporter.Event

// OutputMsg carries a line of engine or reporter output.
type OutputMsg string

// TaskStartMsg marks the start of an engine task.
type TaskStartMsg struct {
	Tests    int
	Browsers []string
}

// TestDoneMsg carries the result of one test on one browser.
type TestDoneMsg struct {
	File    string
	Name    string
	Browser string
	Err     error
}

// TaskDoneMsg marks the end of an engine task.
type TaskDoneMsg struct{}

// AbortedMsg marks the current report aborted.
type AbortedMsg struct{}

// Bridge forwards events, engine results and output lines to the program.
// It is a reporter.Sink, an engine.Reporter and an io.Writer at once.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	partial []byte
}

var (
	_ reporter.Sink   = (*Bridge)(nil)
	_ engine.Reporter = (*Bridge)(nil)
)

// NewBridge creates an open Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

func (b *Bridge) Emit(e reporter.Event) {
	b.send(EventMsg(e))
}

func (b *Bridge) TaskStart(testCount int, browsers []string) {
	b.send(TaskStartMsg{Tests: testCount, Browsers: browsers})
}

func (b *Bridge) TestDone(test engine.Test, browser string, err error) {
	b.send(TestDoneMsg{File: test.File, Name: test.Name, Browser: browser, Err: err})
}

func (b *Bridge) TaskDone() {
	b.send(TaskDoneMsg{})
}

// Abort marks the current report aborted.
func (b *Bridge) Abort() {
	b.send(AbortedMsg{})
}

// Write splits p into lines. An unterminated tail is held until the next
// newline.
func (b *Bridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(b.partial[:i], "\r"))
		b.partial = b.partial[i+1:]
		b.send(OutputMsg(line))
	}
	return len(p), nil
}

// Close unblocks pending sends and ends the program's wait.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// wait blocks for the next message. It returns nil once the bridge is closed.
func (b *Bridge) wait() tea.Msg {
	select {
	case msg := <-b.msgs:
		return msg
	case <-b.done:
		return nil
	}
}
