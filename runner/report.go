package runner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jesspatton/livetest/engine"
)

var reporterFactories = map[string]func(w io.Writer) engine.Reporter{
	"spec":    func(w io.Writer) engine.Reporter { return &specReporter{w: w} },
	"minimal": func(w io.Writer) engine.Reporter { return &minimalReporter{w: w} },
}

// ParseReporterSpec splits "name:path" into its parts. The path is empty when
// the reporter writes to the default output.
func ParseReporterSpec(s string) (name, path string) {
	name, path, _ = strings.Cut(s, ":")
	return strings.TrimSpace(name), strings.TrimSpace(path)
}

// NewReporter creates the named reporter writing to w.
func NewReporter(name string, w io.Writer) (engine.Reporter, error) {
	factory, ok := reporterFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
	return factory(w), nil
}

// specReporter prints one line per test and browser, then a summary.
type specReporter struct {
	mu       sync.Mutex
	w        io.Writer
	start    time.Time
	passed   int
	failed   int
	failures []string
}

func (r *specReporter) TaskStart(testCount int, browsers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = time.Now()
	r.passed, r.failed = 0, 0
	r.failures = nil
	fmt.Fprintf(r.w, " Running %d tests in: %s\n\n", testCount, strings.Join(browsers, ", "))
}

func (r *specReporter) TestDone(test engine.Test, browser string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.passed++
		fmt.Fprintf(r.w, " ✓ %s (%s)\n", test.Name, browser)
		return
	}
	r.failed++
	fmt.Fprintf(r.w, " ✖ %s (%s)\n", test.Name, browser)
	r.failures = append(r.failures, fmt.Sprintf("%d) %s (%s)\n    Error: %v", len(r.failures)+1, test.Name, browser, err))
}

func (r *specReporter) TaskDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := time.Since(r.start).Round(time.Millisecond)
	if r.failed > 0 {
		fmt.Fprintf(r.w, "\n %d/%d failed (%s)\n\n", r.failed, r.passed+r.failed, elapsed)
		for _, f := range r.failures {
			fmt.Fprintf(r.w, " %s\n", f)
		}
		return
	}
	fmt.Fprintf(r.w, "\n %d passed (%s)\n", r.passed, elapsed)
}

// minimalReporter prints a dot per passed run and an F per failure.
type minimalReporter struct {
	mu     sync.Mutex
	w      io.Writer
	failed int
	total  int
}

func (r *minimalReporter) TaskStart(testCount int, browsers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed, r.total = 0, 0
	fmt.Fprint(r.w, " ")
}

func (r *minimalReporter) TestDone(test engine.Test, browser string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if err != nil {
		r.failed++
		fmt.Fprint(r.w, "F")
		return
	}
	fmt.Fprint(r.w, ".")
}

func (r *minimalReporter) TaskDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "\n %d/%d passed\n", r.total-r.failed, r.total)
}
