package engine

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestCompilationError(t *testing.T) {
	err := fmt.Errorf("generation: %w", &CompilationError{File: "a.test.js", Err: os.ErrNotExist})

	if !IsCompilationError(err) {
		t.Fatal("expected wrapped CompilationError to be detected")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected CompilationError to unwrap to the cause")
	}
	if IsFatal(err) {
		t.Error("compilation error must not be fatal")
	}

	want := "generation: compilation failed: a.test.js: file does not exist"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFatalError(t *testing.T) {
	cause := errors.New("port in use")
	err := &FatalError{Op: "create", Err: cause}

	if !IsFatal(err) {
		t.Error("expected FatalError to be detected")
	}
	if !errors.Is(err, cause) {
		t.Error("expected FatalError to unwrap to the cause")
	}
	if err.Error() != "engine create: port in use" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
