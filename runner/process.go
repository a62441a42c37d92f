package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// execute runs job to completion, streaming every output line to out with
// prefix prepended. Cancelling ctx kills the process group.
func execute(ctx context.Context, job *TestJob, env []string, out io.Writer, prefix string) error {
	cmd := exec.CommandContext(ctx, job.Command, job.Args...)
	cmd.Dir = job.Root
	cmd.Env = append(append(os.Environ(), env...), job.Env...)
	prepareCommand(cmd)

	// Setup pipes
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	// Start command
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", job.Command, err)
	}

	lines := &lineWriter{w: out, prefix: prefix}

	// Stream output in goroutines
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamReader(stdout, lines)
	}()
	go func() {
		defer wg.Done()
		streamReader(stderr, lines)
	}()

	// Pipes must be drained before Wait closes them
	wg.Wait()
	return cmd.Wait()
}

func streamReader(r io.Reader, out *lineWriter) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out.writeLine(scanner.Text())
	}
}

// lineWriter serializes whole lines from concurrent streams.
type lineWriter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func (l *lineWriter) writeLine(line string) {
	if l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s%s\n", l.prefix, line)
}
