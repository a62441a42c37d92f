package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jesspatton/livetest/filesystem"
	"github.com/jesspatton/livetest/reporter"
)

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCommander) record(c string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeCommander) Stop(context.Context) error    { f.record("stop"); return nil }
func (f *fakeCommander) Restart(context.Context) error { f.record("restart"); return nil }
func (f *fakeCommander) ToggleWatch()                  { f.record("watch") }
func (f *fakeCommander) Exit(context.Context) error    { f.record("exit"); return nil }

func (f *fakeCommander) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestModel(t *testing.T) (Model, *fakeCommander, *Bridge) {
	t.Helper()
	root := filepath.Join(string(filepath.Separator), "project")
	cmds := &fakeCommander{}
	b := NewBridge()
	t.Cleanup(b.Close)

	m := NewModel(Options{
		Root:     root,
		Commands: cmds,
		Watched: func() []string {
			return []string{
				filepath.Join(root, "tests", "login.test.js"),
				filepath.Join(root, "tests", "helpers", "user.js"),
			}
		},
		Bridge: b,
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), cmds, b
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func TestBridge_Write(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	if _, err := b.Write([]byte("first\nsec")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("ond\r\n")); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"first", "second"} {
		msg := b.wait()
		if got, ok := msg.(OutputMsg); !ok || string(got) != want {
			t.Errorf("expected line %q, got %#v", want, msg)
		}
	}
}

func TestBridge_CloseUnblocks(t *testing.T) {
	b := NewBridge()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Emit(reporter.Event{Kind: reporter.RunStarted})
		}
		close(done)
	}()

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after Close")
	}
	if msg := b.wait(); msg != nil {
		if _, ok := msg.(EventMsg); !ok {
			t.Errorf("unexpected message %#v", msg)
		}
	}
}

func TestModel_Events(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.Intro}))
	if !strings.Contains(m.output, "ctrl+s") {
		t.Error("expected intro text in report")
	}

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.RunStarting}))
	if !m.running || m.output != "" {
		t.Errorf("expected running with a cleared report, got running=%v output=%q", m.running, m.output)
	}

	m, _ = update(m, OutputMsg("[chrome] logs in"))
	if !strings.Contains(m.output, "[chrome] logs in") {
		t.Errorf("expected output line, got %q", m.output)
	}

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.RunFinished, Err: errors.New("boom")}))
	if m.running || m.lastErr == nil || !strings.Contains(m.output, "ERROR: boom") {
		t.Errorf("unexpected state after failed finish: running=%v err=%v", m.running, m.lastErr)
	}

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.WatchToggled, WatchEnabled: false}))
	if m.watchEnabled {
		t.Error("expected watching to be disabled")
	}
	if m.status != reporter.Message(reporter.Event{Kind: reporter.WatchToggled}) {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestModel_Aborted(t *testing.T) {
	m, _, b := newTestModel(t)
	w := reporter.NewAbortWriter(b, b.Abort)

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.RunStarting}))
	if _, err := w.Write([]byte("[chrome] logs in\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("  1) Error: Test run aborted\n")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		m, _ = update(m, b.wait())
	}
	if !m.aborted || m.output != reporter.AbortedText+"\n" {
		t.Fatalf("expected the report to be replaced, got aborted=%v output=%q", m.aborted, m.output)
	}

	m, _ = update(m, OutputMsg("1/2 failed"))
	if strings.Contains(m.output, "1/2 failed") {
		t.Error("output after an abort must stay hidden")
	}

	m, _ = update(m, EventMsg(reporter.Event{Kind: reporter.RunStarting}))
	m, _ = update(m, OutputMsg("[chrome] logs in"))
	if m.aborted || !strings.Contains(m.output, "[chrome] logs in") {
		t.Errorf("expected a new run to clear the mark, got aborted=%v output=%q", m.aborted, m.output)
	}
}

func TestModel_TestResults(t *testing.T) {
	m, _, _ := newTestModel(t)
	file := filepath.Join(m.root, "tests", "login.test.js")

	m, _ = update(m, TaskStartMsg{Tests: 1, Browsers: []string{"chrome", "firefox"}})
	if icon := m.getNodeIcon(DisplayNode{Node: nodeFor(file)}); icon != "⏳" {
		t.Errorf("expected running icon, got %s", icon)
	}

	m, _ = update(m, TestDoneMsg{File: file, Browser: "chrome", Err: errors.New("failed")})
	m, _ = update(m, TestDoneMsg{File: file, Browser: "firefox"})
	if m.nodeStatus[file] != StatusFail {
		t.Error("a failure on one browser must stick")
	}

	m, _ = update(m, TaskDoneMsg{})
	m, _ = update(m, TaskStartMsg{Tests: 1})
	if _, ok := m.nodeStatus[file]; ok {
		t.Error("expected statuses to reset on a new task")
	}
}

func TestModel_WatchedTree(t *testing.T) {
	m, _, _ := newTestModel(t)

	msg := m.refreshTree()
	m, _ = update(m, msg)

	names := make([]string, len(m.flatNodes))
	for i, n := range m.flatNodes {
		names[i] = n.DisplayName
	}
	want := []string{"tests", "helpers", "user.js", "login.test.js"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, names)
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activePane != PaneWatched {
		t.Fatal("expected tab to focus the watched pane")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != len(m.flatNodes)-1 {
		t.Errorf("expected cursor clamped at %d, got %d", len(m.flatNodes)-1, m.cursor)
	}

	if !strings.Contains(m.View(), "WATCHED") {
		t.Error("expected watched pane in view")
	}
}

func TestModel_Keys(t *testing.T) {
	m, cmds, _ := newTestModel(t)

	tests := []struct {
		key  tea.KeyType
		want string
	}{
		{tea.KeyCtrlS, "stop"},
		{tea.KeyCtrlR, "restart"},
		{tea.KeyCtrlW, "watch"},
	}
	for _, tt := range tests {
		var cmd tea.Cmd
		m, cmd = update(m, tea.KeyMsg{Type: tt.key})
		if cmd == nil {
			t.Fatalf("expected a command for %s", tt.want)
		}
		cmd()
	}

	got := cmds.called()
	if strings.Join(got, ",") != "stop,restart,watch" {
		t.Errorf("unexpected calls %v", got)
	}
}

func TestModel_Quit(t *testing.T) {
	m, cmds, _ := newTestModel(t)

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.exiting {
		t.Fatal("expected ctrl+c to start exiting")
	}
	if _, again := update(m, tea.KeyMsg{Type: tea.KeyCtrlC}); again != nil {
		t.Error("second ctrl+c must be ignored")
	}

	msg := cmd()
	if _, ok := msg.(exitedMsg); !ok {
		t.Fatalf("expected exitedMsg, got %#v", msg)
	}
	if got := cmds.called(); len(got) != 1 || got[0] != "exit" {
		t.Errorf("expected a single exit call, got %v", got)
	}

	_, quit := update(m, msg)
	if quit == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func nodeFor(path string) *filesystem.Node {
	return &filesystem.Node{Name: filepath.Base(path), Path: path}
}
