package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jesspatton/livetest/analysis"
	"github.com/jesspatton/livetest/engine"
	"github.com/jesspatton/livetest/filesystem"
)

type processRunner struct {
	eng *ProcessEngine
	rc  engine.RunnerConfig
	log *slog.Logger
}

// Compile expands the sources and parses every test file and its relative
// imports through loader. A file that fails to parse fails the whole
// compilation.
func (r *processRunner) Compile(ctx context.Context, loader engine.Loader) ([]engine.Test, error) {
	ign := filesystem.NewIgnorer(r.eng.cfg.Dir, r.eng.cfg.Vendor)
	files, err := filesystem.ExpandSources(r.rc.Sources, ign)
	if err != nil {
		return nil, &engine.CompilationError{Err: err}
	}

	parser := analysis.NewParser()
	var tests []engine.Test
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mod, err := compileModule(loader, parser, "", file)
		if err != nil {
			var se *analysis.SyntaxError
			if errors.As(err, &se) {
				return nil, &engine.CompilationError{File: se.Path, Err: err}
			}
			return nil, &engine.CompilationError{File: file, Err: err}
		}
		if mod == nil {
			continue
		}
		tests = append(tests, testsOf(r.eng.cfg.Dir, mod)...)
	}
	return tests, nil
}

// compileModule loads path and, recursively, everything it imports.
func compileModule(loader engine.Loader, parser *analysis.Parser, caller, path string) (*analysis.Module, error) {
	v, err := loader.Load(caller, path, func(p string) (any, error) {
		mod, err := parser.Parse(p)
		if err != nil {
			return nil, err
		}
		for _, imp := range mod.Imports {
			if _, err := compileModule(loader, parser, p, imp); err != nil {
				return nil, err
			}
		}
		return mod, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	mod, ok := v.(*analysis.Module)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected cache entry %T", path, v)
	}
	return mod, nil
}

// testsOf lists the tests declared in mod. A file without named tests runs
// as a single test.
func testsOf(root string, mod *analysis.Module) []engine.Test {
	rel := mod.Path
	if root != "" {
		if r, err := filepath.Rel(root, mod.Path); err == nil {
			rel = filepath.ToSlash(r)
		}
	}
	if len(mod.Tests) == 0 {
		return []engine.Test{{ID: rel, Name: filepath.Base(mod.Path), File: mod.Path}}
	}
	tests := make([]engine.Test, 0, len(mod.Tests))
	seen := make(map[string]int)
	for _, name := range mod.Tests {
		id := rel + " > " + name
		if n := seen[name]; n > 0 {
			id = fmt.Sprintf("%s #%d", id, n+1)
		}
		seen[name]++
		tests = append(tests, engine.Test{ID: id, Name: name, File: mod.Path})
	}
	return tests
}

// Run executes tests on every browser. Each browser works through the tests
// in the same order with at most Concurrency runs in flight.
func (r *processRunner) Run(ctx context.Context, tests []engine.Test) engine.Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &handle{done: make(chan struct{}), cancel: cancel}

	if r.rc.Filter != nil {
		filtered := tests[:0:0]
		for _, t := range tests {
			if r.rc.Filter(t) {
				filtered = append(filtered, t)
			}
		}
		tests = filtered
	}

	go func() {
		defer close(h.done)
		defer cancel()

		hooks := r.rc.Hooks
		hooks.TaskStarted(len(tests))
		for _, rep := range r.rc.Reporters {
			rep.TaskStart(len(tests), r.rc.Browsers)
		}

		perBrowser := make(map[string][]*processRun, len(r.rc.Browsers))
		for _, t := range tests {
			for _, b := range r.rc.Browsers {
				run := newProcessRun(t, b, r.log)
				hooks.RunCreated(run)
				perBrowser[b] = append(perBrowser[b], run)
			}
		}

		var browsers errgroup.Group
		for _, b := range r.rc.Browsers {
			runs := perBrowser[b]
			browsers.Go(func() error {
				var pool errgroup.Group
				pool.SetLimit(r.rc.Concurrency)
				for _, run := range runs {
					pool.Go(func() error {
						r.execute(ctx, run)
						return nil
					})
				}
				return pool.Wait()
			})
		}
		_ = browsers.Wait()

		for _, rep := range r.rc.Reporters {
			rep.TaskDone()
		}

		dispose := r.eng.disposeSessions
		if r.rc.Dispose != nil {
			if err := r.rc.Dispose(dispose); err != nil {
				r.log.Warn("dispose failed", "err", err)
			}
		} else if err := dispose(); err != nil {
			r.log.Warn("dispose failed", "err", err)
		}
	}()

	return h
}

func (r *processRunner) execute(ctx context.Context, run *processRun) {
	hooks := r.rc.Hooks
	if err := hooks.RunStarted(run); err != nil {
		r.log.Debug("run not started", "test", run.test.Name, "browser", run.browser, "err", err)
		return
	}
	r.eng.openSession(run.browser)

	err := r.role(ctx, run)
	if err == nil {
		err = r.command(ctx, run)
	}

	if doneErr := hooks.BeforeCommand(run, engine.Command{Type: engine.CommandTestDone}); doneErr != nil && err == nil {
		err = doneErr
	}
	for _, rep := range r.rc.Reporters {
		rep.TestDone(run.test, run.browser, err)
	}

	select {
	case <-hooks.RunDone(run):
	case <-ctx.Done():
	}
	run.finish()
	r.log.Debug("run finalized", "test", run.test.Name, "browser", run.browser, "unlocked", run.Unlocked())
}

// role runs the role command. It is not interrupted by cancellation.
func (r *processRunner) role(ctx context.Context, run *processRun) error {
	job, err := PrepareRoleJob(r.eng.cfg, run.test, run.browser)
	if err != nil || job == nil {
		return err
	}

	hooks := r.rc.Hooks
	hooks.RoleInitializing(run, true)
	defer hooks.RoleInitializing(run, false)

	if err := hooks.BeforeCommand(run, engine.Command{Type: engine.CommandExecute}); err != nil {
		return err
	}
	return execute(context.WithoutCancel(ctx), job, r.eng.env(), r.rc.Output, prefixFor(run))
}

func (r *processRunner) command(ctx context.Context, run *processRun) error {
	job, err := PrepareJob(r.eng.cfg, run.test, run.browser)
	if err != nil {
		return err
	}
	if err := r.rc.Hooks.BeforeCommand(run, engine.Command{Type: engine.CommandExecute}); err != nil {
		return err
	}
	return execute(ctx, job, r.eng.env(), r.rc.Output, prefixFor(run))
}

func prefixFor(run *processRun) string {
	return "[" + run.browser + "] "
}

type handle struct {
	done      chan struct{}
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Err is context.Canceled for a force-stopped run and nil otherwise,
// whatever the test results.
func (h *handle) Err() error {
	if h.cancelled.Load() {
		return context.Canceled
	}
	return nil
}

// processRun is one test on one browser.
type processRun struct {
	id      string
	test    engine.Test
	browser string
	log     *slog.Logger

	mu       sync.Mutex
	unlocked bool
	finished bool
}

func newProcessRun(t engine.Test, browser string, log *slog.Logger) *processRun {
	return &processRun{
		id:      ulid.Make().String(),
		test:    t,
		browser: browser,
		log:     log,
	}
}

func (p *processRun) ID() string { return p.id }
func (p *processRun) Test() engine.Test { return p.test }
func (p *processRun) Browser() string { return p.browser }

// Unlock marks the page interactive. Command-driven browsers own their page,
// so this only records the handoff.
func (p *processRun) Unlock() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return engine.ErrClosed
	}
	p.unlocked = true
	p.log.Debug("page unlocked", "test", p.test.Name, "browser", p.browser)
	return nil
}

func (p *processRun) finish() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
}

// Unlocked reports whether the page was handed back to the user.
func (p *processRun) Unlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unlocked
}
