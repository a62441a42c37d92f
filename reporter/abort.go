package reporter

import (
	"bytes"
	"io"
	"sync"
)

// AbortWriter decorates the engine's output. Any chunk mentioning an aborted
// test run is replaced by a single "Test run aborted" line and marks the
// current report aborted. onAbort fires on the first abort of a run.
type AbortWriter struct {
	mu      sync.Mutex
	w       io.Writer
	aborted bool
	onAbort func()
}

// NewAbortWriter wraps w. onAbort may be nil.
func NewAbortWriter(w io.Writer, onAbort func()) *AbortWriter {
	return &AbortWriter{w: w, onAbort: onAbort}
}

func (a *AbortWriter) Write(p []byte) (int, error) {
	if !bytes.Contains(bytes.ToLower(p), []byte(abortMarkerLowered)) {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.w.Write(p)
	}

	a.mu.Lock()
	first := !a.aborted
	a.aborted = true
	_, err := io.WriteString(a.w, msgTestRunAborted+"\n")
	a.mu.Unlock()

	if first && a.onAbort != nil {
		a.onAbort()
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Emit clears the aborted mark when a new run starts, so an AbortWriter can
// be registered as a Sink next to the reporter it decorates.
func (a *AbortWriter) Emit(e Event) {
	if e.Kind != RunStarting && e.Kind != SourceChanged {
		return
	}
	a.mu.Lock()
	a.aborted = false
	a.mu.Unlock()
}
