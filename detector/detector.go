// Package detector turns file system notifications on the discovered source
// set into change events.
//
// Every module the engine loads through the module cache becomes a watched
// file. A notification locks its file for a short window so that the burst of
// writes an editor produces on save is reported once, drops the cached
// compilation of the file and of everything above it that is itself watched,
// and hands a ChangeEvent to the handler.
package detector

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jesspatton/livetest/analysis"
)

// DefaultLockWindow is how long a file ignores further notifications after one
// was accepted.
const DefaultLockWindow = 200 * time.Millisecond

// Subscriber is the per-file watch primitive.
type Subscriber interface {
	Subscribe(path string, onChange func()) (func(), error)
}

// Boundary tells vendored paths apart from project sources.
type Boundary interface {
	IsVendored(path string) bool
}

// ChangeEvent describes one accepted modification.
type ChangeEvent struct {
	Path        string
	Invalidated []string
}

// Option configures a Detector.
type Option func(*Detector)

// WithLockWindow overrides DefaultLockWindow.
func WithLockWindow(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.window = d
		}
	}
}

// WithLogger sets the logger used for dropped watches.
func WithLogger(log *slog.Logger) Option {
	return func(det *Detector) {
		if log != nil {
			det.log = log
		}
	}
}

type watch struct {
	unsubscribe func()
	lock        *time.Timer
}

// Detector tracks the watched file set.
type Detector struct {
	sub      Subscriber
	cache    *analysis.ModuleCache
	boundary Boundary
	window   time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
	handler func(ChangeEvent)
	closed  bool
}

// New creates a Detector and registers it for module discovery on cache.
func New(sub Subscriber, cache *analysis.ModuleCache, boundary Boundary, opts ...Option) *Detector {
	d := &Detector{
		sub:      sub,
		cache:    cache,
		boundary: boundary,
		window:   DefaultLockWindow,
		log:      slog.Default(),
		watches:  make(map[string]*watch),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "detector")

	cache.OnDiscover(d.AddWatch)
	return d
}

// OnChange registers the handler for accepted changes.
func (d *Detector) OnChange(fn func(ChangeEvent)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

// AddWatch starts watching path. Repeated calls and vendored paths are no-ops.
// A watch that cannot be established is dropped.
func (d *Detector) AddWatch(path string) {
	if d.boundary != nil && d.boundary.IsVendored(path) {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if _, ok := d.watches[path]; ok {
		d.mu.Unlock()
		return
	}
	w := &watch{}
	d.watches[path] = w
	d.mu.Unlock()

	unsubscribe, err := d.sub.Subscribe(path, func() { d.notify(path) })

	d.mu.Lock()
	if err != nil {
		delete(d.watches, path)
		d.mu.Unlock()
		d.log.Debug("watch dropped", "path", path, "err", err)
		return
	}
	if d.closed {
		d.mu.Unlock()
		unsubscribe()
		return
	}
	w.unsubscribe = unsubscribe
	d.mu.Unlock()
}

// Watched returns the watched paths, sorted.
func (d *Detector) Watched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	paths := make([]string, 0, len(d.watches))
	for p, w := range d.watches {
		if w.unsubscribe != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Close releases every subscription. Later notifications and watches are ignored.
func (d *Detector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	var unsubs []func()
	for _, w := range d.watches {
		if w.lock != nil {
			w.lock.Stop()
		}
		if w.unsubscribe != nil {
			unsubs = append(unsubs, w.unsubscribe)
		}
	}
	d.watches = make(map[string]*watch)
	d.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
}

func (d *Detector) notify(path string) {
	d.mu.Lock()
	w, ok := d.watches[path]
	if d.closed || !ok || w.lock != nil {
		d.mu.Unlock()
		return
	}
	w.lock = time.AfterFunc(d.window, func() { d.unlock(path, w) })
	handler := d.handler
	d.mu.Unlock()

	invalidated := d.cache.Invalidate(path, d.walkable)
	d.log.Debug("source changed", "path", path, "invalidated", len(invalidated))

	if handler != nil {
		handler(ChangeEvent{Path: path, Invalidated: invalidated})
	}
}

func (d *Detector) unlock(path string, w *watch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watches[path] == w {
		w.lock = nil
	}
}

func (d *Detector) walkable(path string) bool {
	if d.boundary != nil && d.boundary.IsVendored(path) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.watches[path]
	return ok
}
