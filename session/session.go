// Package session drives generations of a test suite over a long-lived
// engine and its browser connections.
//
// The Manager is the only owner of the engine, its runner and therefore the
// connection pool. It plugs into the engine as a Hooks strategy and keeps its
// per-run bookkeeping in a side-table keyed by run ID. A test completes once
// every browser finished it; the pages of the last tests of a generation stay
// open and interactive until the next generation starts or the manager exits.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jesspatton/livetest/engine"
)

var (
	ErrExited           = errors.New("session manager exited")
	ErrGenerationActive = errors.New("a generation is already active")
)

// Config is the suite a Manager runs on every generation.
type Config struct {
	Sources     []string
	Browsers    []string
	Concurrency int
	Filter      engine.Filter
	Reporters   []engine.Reporter
	Output      io.Writer
}

// Result describes a completed or stopped generation.
type Result struct {
	GenerationID string
	Tests        int
	Err          error
	Duration     time.Duration
}

// Listener receives generation lifecycle notifications. Calls arrive on
// engine goroutines, never while the manager holds its lock.
type Listener interface {
	GenerationStarted(id string)
	GenerationFinished(res Result)
	GenerationStopped(res Result)
}

type nopListener struct{}

func (nopListener) GenerationStarted(string) {}
func (nopListener) GenerationFinished(Result) {}
func (nopListener) GenerationStopped(Result) {}

// Manager runs one generation at a time.
type Manager struct {
	eng    engine.Engine
	loader engine.Loader
	cfg    Config
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// startMu serializes StartGeneration.
	startMu sync.Mutex
	runner  engine.Runner

	mu       sync.Mutex
	listener Listener
	gen      *generation
	runs     map[string]*runWrapper
	dispose  func() error
	exited   bool

	exitOnce sync.Once
	exitErr  error
}

// New creates a Manager owning eng. Compilation goes through loader.
func New(eng engine.Engine, loader engine.Loader, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		eng:      eng,
		loader:   loader,
		cfg:      cfg,
		log:      log.With("component", "session"),
		ctx:      ctx,
		cancel:   cancel,
		listener: nopListener{},
		runs:     make(map[string]*runWrapper),
	}
}

// SetListener registers l for lifecycle notifications.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l == nil {
		l = nopListener{}
	}
	m.listener = l
}

// StartGeneration releases the pages held open by the previous generation,
// waits for it to unwind and starts a new pass of the suite. It returns the
// new generation's ID once the pass is underway.
func (m *Manager) StartGeneration(ctx context.Context) (string, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	if m.exited {
		m.mu.Unlock()
		return "", ErrExited
	}
	prev := m.gen
	if prev != nil && !prev.terminal {
		m.mu.Unlock()
		return "", ErrGenerationActive
	}
	var release []*runWrapper
	if prev != nil {
		release = prev.releaseWaiting(release)
	}
	m.mu.Unlock()

	releaseGates(release)
	recordHeldGates(0)

	if prev != nil {
		select {
		case <-prev.unwound:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	runner, err := m.ensureRunner()
	if err != nil {
		return "", err
	}

	gen := newGeneration(ulid.Make().String(), len(m.cfg.Browsers))

	m.mu.Lock()
	if m.exited {
		m.mu.Unlock()
		return "", ErrExited
	}
	m.gen = gen
	m.runs = make(map[string]*runWrapper)
	m.mu.Unlock()

	m.log.Info("generation starting", "generation", gen.id)
	go m.drive(gen, runner)

	return gen.id, nil
}

func (m *Manager) ensureRunner() (engine.Runner, error) {
	if m.runner != nil {
		return m.runner, nil
	}
	runner, err := m.eng.CreateRunner(engine.RunnerConfig{
		Sources:     m.cfg.Sources,
		Browsers:    m.cfg.Browsers,
		Concurrency: m.cfg.Concurrency,
		Filter:      m.cfg.Filter,
		Reporters:   m.cfg.Reporters,
		Hooks:       &hooks{m: m},
		Assets:      []engine.Asset{UnlockAsset()},
		Output:      m.cfg.Output,
		Dispose:     m.interceptDispose,
	})
	if err != nil {
		return nil, &engine.FatalError{Op: "create runner", Err: err}
	}
	m.runner = runner
	return runner, nil
}

// interceptDispose keeps the connection pool alive between generations. The
// real disposal runs at Exit.
func (m *Manager) interceptDispose(dispose func() error) error {
	m.mu.Lock()
	m.dispose = dispose
	m.mu.Unlock()
	return nil
}

// drive compiles and executes one generation, then reports its outcome
// unless RunDone already did.
func (m *Manager) drive(gen *generation, runner engine.Runner) {
	defer close(gen.unwound)

	tests, compileErr := runner.Compile(m.ctx, m.loader)
	if compileErr != nil {
		if !engine.IsCompilationError(compileErr) {
			compileErr = &engine.CompilationError{Err: compileErr}
		}
		m.log.Warn("compilation failed", "generation", gen.id, "err", compileErr)
		// The engine still executes an empty pass so its per-run teardown runs.
		tests = nil
	}

	m.mu.Lock()
	if gen.stopRequested {
		tests = nil
	}
	if gen.expected == 0 {
		gen.expected = len(tests)
	}
	m.mu.Unlock()

	handle := runner.Run(m.ctx, tests)

	m.mu.Lock()
	gen.handle = handle
	m.mu.Unlock()

	<-handle.Done()

	m.mu.Lock()
	if gen.terminal {
		m.mu.Unlock()
		return
	}
	gen.terminal = true
	stopped := gen.stopRequested
	listener := m.listener
	m.mu.Unlock()

	err := compileErr
	if err == nil {
		err = handle.Err()
		if errors.Is(err, engine.ErrRunAborted) || errors.Is(err, context.Canceled) {
			err = nil
		}
	}

	res := gen.result(err)
	switch {
	case stopped:
		m.log.Info("generation stopped", "generation", gen.id, "tests", res.Tests)
		recordGeneration("stopped")
		listener.GenerationStopped(res)
	case err != nil:
		m.log.Info("generation failed", "generation", gen.id, "err", err)
		recordGeneration("failed")
		listener.GenerationFinished(res)
	default:
		m.log.Info("generation finished", "generation", gen.id, "tests", res.Tests)
		recordGeneration("finished")
		listener.GenerationFinished(res)
	}
	close(gen.reported)
}

// Stop requests the active generation to stop and waits until the engine
// unwound. A generation whose start is in flight is stopped once installed.
// Runs inside a role initialization finish it first. When the current
// generation already ended, Stop only waits for its outcome to be reported.
func (m *Manager) Stop(ctx context.Context) error {
	m.startMu.Lock()
	m.mu.Lock()
	gen := m.gen
	if gen == nil {
		m.mu.Unlock()
		m.startMu.Unlock()
		return nil
	}
	if gen.terminal {
		m.mu.Unlock()
		m.startMu.Unlock()
		return waitClosed(ctx, gen.reported)
	}
	var release []*runWrapper
	if !gen.stopRequested {
		gen.stopRequested = true
		for _, tw := range gen.order {
			for _, rw := range tw.runs {
				switch rw.state {
				case runCreated, runRunning:
					rw.stop()
				case runWaitingForDone:
					release = rw.finish(release)
				}
			}
			if tw.allDone() {
				tw.state = testDone
			}
		}
	}
	m.mu.Unlock()
	m.startMu.Unlock()

	m.log.Info("generation stop requested", "generation", gen.id)
	releaseGates(release)

	return waitClosed(ctx, gen.unwound)
}

func waitClosed(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exit stops the active generation, releases every held page, disposes of the
// connection pool and closes the engine. Only the first call does any work.
func (m *Manager) Exit(ctx context.Context) error {
	m.exitOnce.Do(func() {
		m.exitErr = m.exit(ctx)
	})
	return m.exitErr
}

func (m *Manager) exit(ctx context.Context) error {
	m.mu.Lock()
	m.exited = true
	gen := m.gen
	m.mu.Unlock()

	var errs []error

	if gen != nil {
		if err := m.Stop(ctx); err != nil {
			m.cancelGeneration(gen)
			errs = append(errs, err)
		}

		m.mu.Lock()
		release := gen.releaseWaiting(nil)
		m.mu.Unlock()
		releaseGates(release)
		recordHeldGates(0)

		select {
		case <-gen.unwound:
		case <-ctx.Done():
			m.cancelGeneration(gen)
		}
	}

	m.mu.Lock()
	dispose := m.dispose
	m.dispose = nil
	m.mu.Unlock()

	if dispose != nil {
		if err := dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.eng.Close(); err != nil {
		errs = append(errs, err)
	}
	m.cancel()

	m.log.Info("session closed")
	return errors.Join(errs...)
}

func (m *Manager) cancelGeneration(gen *generation) {
	m.mu.Lock()
	handle := gen.handle
	m.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

func releaseGates(runs []*runWrapper) {
	for _, rw := range runs {
		rw.release()
	}
}
