package reporter

import (
	"fmt"
	"io"
	"sync"
)

// Plain writes one status line per event. It does not report RunStarted:
// the engine's own report follows RunStarting directly.
type Plain struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlain creates a Plain reporter writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) Emit(e Event) {
	if e.Kind == RunStarted {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Kind == Intro {
		fmt.Fprint(p.w, IntroText)
		return
	}
	if e.Kind == RunFinished && e.Err != nil {
		fmt.Fprintf(p.w, "\nERROR: %v\n", e.Err)
	}
	fmt.Fprintf(p.w, "\n%s\n", Message(e))
}
