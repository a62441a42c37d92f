package filesystem

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers per-file change notifications.
//
// fsnotify watches directories, not files: editors commonly replace a file by
// renaming over it, which drops a watch placed on the file itself. Each
// subscription therefore adds a reference to the parent directory and events
// are routed to handlers by exact path.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	log       *slog.Logger

	mu   sync.Mutex
	subs map[string]map[uint64]func()
	dirs map[string]int
	next uint64

	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a Watcher and starts its event loop.
func NewWatcher(log *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		log:       log.With("component", "watcher"),
		subs:      make(map[string]map[uint64]func()),
		dirs:      make(map[string]int),
		done:      make(chan struct{}),
	}

	go w.startLoop()

	return w, nil
}

// Subscribe calls onChange for every mutation of path until the returned
// function is called. It fails if path does not exist.
func (w *Watcher) Subscribe(path string, onChange func()) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return nil, fsnotify.ErrClosed
	default:
	}

	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, err
		}
	}
	w.dirs[dir]++

	id := w.next
	w.next++
	if w.subs[abs] == nil {
		w.subs[abs] = make(map[uint64]func())
	}
	w.subs[abs][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() { w.unsubscribe(abs, dir, id) })
	}, nil
}

func (w *Watcher) unsubscribe(path, dir string, id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.subs[path], id)
	if len(w.subs[path]) == 0 {
		delete(w.subs, path)
	}

	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		select {
		case <-w.done:
		default:
			_ = w.fsWatcher.Remove(dir)
		}
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.fsWatcher.Close()
	})
}

func (w *Watcher) handlers(path string) []func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := w.subs[path]
	out := make([]func(), 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func (w *Watcher) startLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// Ignore CHMOD events which can be noisy
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			for _, fn := range w.handlers(filepath.Clean(event.Name)) {
				fn()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "err", err)
		}
	}
}
