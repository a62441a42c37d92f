package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jesspatton/livetest/engine"
	"github.com/jesspatton/livetest/runner"
)

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	seen  chan string
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{seen: make(chan string, 10)}
}

func (f *fakeCommander) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	f.seen <- c
}

func (f *fakeCommander) Stop(context.Context) error    { f.record("stop"); return nil }
func (f *fakeCommander) Restart(context.Context) error { f.record("restart"); return nil }
func (f *fakeCommander) ToggleWatch()                  { f.record("watch") }

func TestReadCommands(t *testing.T) {
	c := newFakeCommander()
	exited := make(chan struct{})
	input := []byte{'x', keyCtrlS, keyCtrlW, keyCtrlR, keyCtrlC, keyCtrlS}

	done := make(chan struct{})
	go func() {
		readCommands(context.Background(), bytes.NewReader(input), c, func() { close(exited) })
		close(done)
	}()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("ctrl+c did not exit")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return after ctrl+c")
	}

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case cmd := <-c.seen:
			got[cmd] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("missing commands, got %v", got)
		}
	}
	if !got["stop"] || !got["watch"] || !got["restart"] {
		t.Errorf("unexpected commands %v", got)
	}

	// Bytes after ctrl+c are not read
	select {
	case cmd := <-c.seen:
		t.Errorf("unexpected command after exit: %s", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReadCommands_EOF(t *testing.T) {
	c := newFakeCommander()
	done := make(chan struct{})
	go func() {
		readCommands(context.Background(), strings.NewReader(""), c, func() { t.Error("EOF must not exit") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return on EOF")
	}
}

func TestCLIApply(t *testing.T) {
	cfg := runner.DefaultConfig("/project")
	cfg.Browsers = []string{"chrome"}
	cfg.Reporters = []string{"spec"}

	cli := CLI{
		Src:         []string{"/project/tests"},
		Browsers:    []string{"firefox", "safari"},
		Concurrency: 3,
		TestGrep:    "^login",
		LockWindow:  time.Second,
	}
	cli.apply(&cfg)

	if len(cfg.Src) != 1 || cfg.Src[0] != "/project/tests" {
		t.Errorf("unexpected src %v", cfg.Src)
	}
	if strings.Join(cfg.Browsers, ",") != "firefox,safari" {
		t.Errorf("unexpected browsers %v", cfg.Browsers)
	}
	if cfg.Concurrency != 3 || cfg.Filter.TestGrep != "^login" || cfg.LockWindow != time.Second {
		t.Errorf("flags not applied: %+v", cfg)
	}
	// Unset flags keep the file values
	if cfg.Command != runner.DefaultCommand || cfg.Reporters[0] != "spec" {
		t.Errorf("unset flags overrode config: %+v", cfg)
	}
}

func TestCLILoadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".livetest.yaml"), []byte("src: [tests]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cli := CLI{Config: dir}
	if _, err := cli.loadConfig(); err == nil || !strings.Contains(err.Error(), "no browsers") {
		t.Errorf("expected missing browsers error, got %v", err)
	}

	cli.Browsers = []string{"chrome"}
	cfg, err := cli.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if got := cfg.ResolveSources(); len(got) != 1 || got[0] != filepath.Join(dir, "tests") {
		t.Errorf("unexpected sources %v", got)
	}

	cli.Ports = []int{1337}
	if _, err := cli.loadConfig(); err == nil {
		t.Error("expected invalid ports error")
	}
}

func TestBuildReporters(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.txt")
	var out bytes.Buffer

	reporters, closeAll, err := buildReporters([]string{"minimal", "spec:" + file}, &out)
	if err != nil {
		t.Fatalf("buildReporters failed: %v", err)
	}
	for _, r := range reporters {
		r.TaskStart(1, []string{"chrome"})
		r.TestDone(engine.Test{Name: "a"}, "chrome", nil)
		r.TaskDone()
	}
	closeAll()

	if !strings.Contains(out.String(), "1/1 passed") {
		t.Errorf("unexpected default output %q", out.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "✓ a (chrome)") {
		t.Errorf("unexpected file report %q", data)
	}

	if _, _, err := buildReporters([]string{"xunit"}, &out); err == nil {
		t.Error("expected unknown reporter error")
	}
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newCRLFWriter(&buf)
	n, err := w.Write([]byte("a\nb\n"))
	if err != nil || n != 4 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if buf.String() != "a\r\nb\r\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
