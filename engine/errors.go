package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrRunAborted is returned for commands issued after a run was stopped.
	ErrRunAborted = errors.New("test run aborted")
	ErrClosed     = errors.New("engine closed")
)

// CompilationError reports test sources that failed to compile.
type CompilationError struct {
	File string
	Err  error
}

func (e *CompilationError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("compilation failed: %v", e.Err)
	}
	return fmt.Sprintf("compilation failed: %s: %v", e.File, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// FatalError reports an engine that could not be initialized.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsCompilationError reports whether err carries a CompilationError.
func IsCompilationError(err error) bool {
	var ce *CompilationError
	return errors.As(err, &ce)
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
