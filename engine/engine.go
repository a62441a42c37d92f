// Package engine describes the test execution engine livetest drives.
//
// The engine owns browser automation: it compiles test sources, keeps a pool of
// browser connections and executes every test on every assigned browser. The
// orchestrator plugs into it through Hooks and RunnerConfig and never touches
// connections directly.
package engine

import (
	"context"
	"io"
)

// Command types the orchestrator cares about.
const (
	CommandExecute    = "execute"
	CommandTestDone   = "test-done"
	CommandUnlockPage = "unlock-page"
)

// Test is one compiled test case.
type Test struct {
	ID   string
	Name string
	File string
}

// Command is a single instruction an engine issues to a browser on behalf of a run.
type Command struct {
	Type string
}

// Run is one test executing on one browser.
type Run interface {
	ID() string
	Test() Test
	Browser() string
	// Unlock lets the user interact with the page without closing the session.
	Unlock() error
}

// Hooks is the execution strategy an engine invokes while it works.
//
// A run whose RunStarted returns an error never starts and is not reported
// to RunDone. A command rejected by BeforeCommand is not executed; the engine
// still issues CommandTestDone for the run. RunDone returns a gate: the engine
// must not finalize the run (close the page, move the connection on) until the
// gate is closed.
type Hooks interface {
	TaskStarted(testCount int)
	RunCreated(run Run)
	RunStarted(run Run) error
	BeforeCommand(run Run, cmd Command) error
	RoleInitializing(run Run, active bool)
	RunDone(run Run) <-chan struct{}
}

// Reporter receives task progress from the engine.
type Reporter interface {
	TaskStart(testCount int, browsers []string)
	TestDone(test Test, browser string, err error)
	TaskDone()
}

// Asset is a resource served to the browser alongside the tested page.
type Asset struct {
	Path        string
	ContentType string
	Content     []byte
}

// Loader resolves compiled modules. Implementations cache results per path and
// record caller to callee edges.
type Loader interface {
	Load(caller, path string, compile func(path string) (any, error)) (any, error)
}

// Filter selects the tests of a suite that should run.
type Filter func(Test) bool

// DisposeFunc intercepts the connection pool disposal. The engine calls it at
// the end of every run with the real disposal function.
type DisposeFunc func(dispose func() error) error

// TLSOptions configures the engine proxy for HTTPS.
type TLSOptions struct {
	CertFile string
	KeyFile  string
}

// Options configures engine creation.
type Options struct {
	Hostname string
	Port1    int
	Port2    int
	TLS      *TLSOptions
}

// RunnerConfig configures a runner.
type RunnerConfig struct {
	Sources     []string
	Browsers    []string
	Concurrency int
	Filter      Filter
	Reporters   []Reporter
	Hooks       Hooks
	Assets      []Asset
	Output      io.Writer
	Dispose     DisposeFunc
}

// Handle tracks one engine run.
type Handle interface {
	// Done is closed once every browser finished or was force-stopped.
	Done() <-chan struct{}
	Err() error
	Cancel()
}

// Runner executes a configured suite. It is reused across runs.
type Runner interface {
	Compile(ctx context.Context, loader Loader) ([]Test, error)
	Run(ctx context.Context, tests []Test) Handle
}

// Engine is a started engine instance.
type Engine interface {
	CreateRunner(cfg RunnerConfig) (Runner, error)
	Close() error
}

// Factory creates an engine instance.
type Factory func(ctx context.Context, opts Options) (Engine, error)
