// Package reporter renders orchestrator lifecycle events for the operator.
package reporter

import "time"

// Kind identifies a lifecycle event.
type Kind int

const (
	Intro Kind = iota
	RunStarting
	SourceChanged
	RunStarted
	RunFinished
	RunStopping
	RunStopped
	WatchToggled
	NothingToStop
	Exiting
)

var kindNames = map[Kind]string{
	Intro:         "intro",
	RunStarting:   "run-starting",
	SourceChanged: "source-changed",
	RunStarted:    "run-started",
	RunFinished:   "run-finished",
	RunStopping:   "run-stopping",
	RunStopped:    "run-stopped",
	WatchToggled:  "watch-toggled",
	NothingToStop: "nothing-to-stop",
	Exiting:       "exiting",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one lifecycle notification.
type Event struct {
	Kind         Kind
	GenerationID string
	Path         string // SourceChanged
	WatchEnabled bool   // WatchToggled
	Tests        int
	Duration     time.Duration
	Err          error
}

// Sink consumes lifecycle events. Emit must not block for long: it is called
// from the controller's command path.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
