// Package runner is a process-backed test engine. Every test runs on every
// browser as an external command built from the project configuration.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jesspatton/livetest/engine"
)

// ProcessEngine implements engine.Engine by spawning commands.
type ProcessEngine struct {
	cfg  Config
	opts engine.Options
	log  *slog.Logger

	assetDir string

	mu       sync.Mutex
	sessions map[string]int
	closed   bool
}

var _ engine.Engine = (*ProcessEngine)(nil)

// NewFactory returns an engine.Factory creating process engines for cfg.
func NewFactory(cfg Config, log *slog.Logger) engine.Factory {
	return func(ctx context.Context, opts engine.Options) (engine.Engine, error) {
		return New(ctx, cfg, opts, log)
	}
}

// New creates a ProcessEngine. The asset directory shared with commands is
// created here and removed on Close.
func New(ctx context.Context, cfg Config, opts engine.Options, log *slog.Logger) (*ProcessEngine, error) {
	if err := ctx.Err(); err != nil {
		return nil, &engine.FatalError{Op: "create", Err: err}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Hostname == "" {
		opts.Hostname = DefaultHostname
	}
	if opts.TLS != nil {
		for _, f := range []string{opts.TLS.CertFile, opts.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return nil, &engine.FatalError{Op: "create", Err: fmt.Errorf("tls: %w", err)}
			}
		}
	}

	assetDir, err := os.MkdirTemp("", "livetest-assets-")
	if err != nil {
		return nil, &engine.FatalError{Op: "create", Err: err}
	}

	return &ProcessEngine{
		cfg:      cfg,
		opts:     opts,
		log:      log.With("component", "engine"),
		assetDir: assetDir,
		sessions: make(map[string]int),
	}, nil
}

// CreateRunner writes the configured assets and returns a runner.
func (e *ProcessEngine) CreateRunner(rc engine.RunnerConfig) (engine.Runner, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, engine.ErrClosed
	}
	if rc.Hooks == nil {
		return nil, errors.New("runner: hooks are required")
	}

	for _, a := range rc.Assets {
		path := filepath.Join(e.assetDir, filepath.FromSlash(filepath.Clean("/"+a.Path)))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, a.Content, 0644); err != nil {
			return nil, err
		}
	}

	if rc.Concurrency <= 0 {
		rc.Concurrency = 1
	}
	if rc.Output == nil {
		rc.Output = io.Discard
	}
	return &processRunner{eng: e, rc: rc, log: e.log}, nil
}

// Close releases the engine. Calls after the first are no-ops.
func (e *ProcessEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.log.Info("engine closed")
	return os.RemoveAll(e.assetDir)
}

// AssetDir is where assets are served from.
func (e *ProcessEngine) AssetDir() string {
	return e.assetDir
}

// env is passed to every command.
func (e *ProcessEngine) env() []string {
	return []string{
		"LIVETEST_HOSTNAME=" + e.opts.Hostname,
		"LIVETEST_PORT1=" + strconv.Itoa(e.opts.Port1),
		"LIVETEST_PORT2=" + strconv.Itoa(e.opts.Port2),
		"LIVETEST_ASSETS=" + e.assetDir,
	}
}

func (e *ProcessEngine) openSession(browser string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[browser]++
}

// disposeSessions drops the browser sessions opened by runs.
func (e *ProcessEngine) disposeSessions() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.sessions {
		n += c
	}
	e.sessions = make(map[string]int)
	e.log.Info("browser sessions disposed", "runs", n)
	return nil
}

// Sessions returns the number of runs executed per browser since the last
// disposal.
func (e *ProcessEngine) Sessions() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.sessions))
	for k, v := range e.sessions {
		out[k] = v
	}
	return out
}
