package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// Operator keys as read from a raw terminal.
const (
	keyCtrlC = 0x03
	keyCtrlR = 0x12
	keyCtrlS = 0x13
	keyCtrlW = 0x17
)

// commander is the part of the controller keypresses drive.
type commander interface {
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	ToggleWatch()
}

// readCommands maps keypresses from r to controller commands until ctrl+c,
// EOF or ctx ends. Stop and restart run in the background so ctrl+c is never
// queued behind them.
func readCommands(ctx context.Context, r io.Reader, c commander, exit func()) {
	br := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return
		}
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case keyCtrlS:
			go func() { _ = c.Stop(ctx) }()
		case keyCtrlR:
			go func() { _ = c.Restart(ctx) }()
		case keyCtrlW:
			c.ToggleWatch()
		case keyCtrlC:
			exit()
			return
		}
	}
}

// rawInput puts a terminal into raw mode so control keys arrive as bytes.
type rawInput struct {
	r     io.Reader
	fd    int
	state *term.State
}

func openRawInput(f *os.File) *rawInput {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return &rawInput{r: f, fd: fd}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return &rawInput{r: f, fd: fd}
	}
	return &rawInput{r: f, fd: fd, state: state}
}

func (ri *rawInput) active() bool {
	return ri != nil && ri.state != nil
}

func (ri *rawInput) restore() {
	if ri.active() {
		_ = term.Restore(ri.fd, ri.state)
	}
}

// crlfWriter restores line starts on a terminal in raw mode, where a bare
// newline does not return the carriage.
type crlfWriter struct {
	w io.Writer
}

func newCRLFWriter(w io.Writer) io.Writer {
	return &crlfWriter{w: w}
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(p)
}
