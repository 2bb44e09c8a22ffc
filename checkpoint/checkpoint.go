// Package checkpoint decorates errors with the position of the code that
// returned them, so that a chain of checkpoints reads like a short trace.
// Every error attached to a checkpoint can still be matched with errors.Is
// and extracted with errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From attaches the caller position to err.
// It returns nil if err is nil.
func From(err error) error {
	// io.EOF must stay comparable with ==.
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap attaches the caller position and a describing error to cause.
// It returns nil if cause is nil, which allows predefined errors to be used
// without checking cause first:
//
//	var ErrFlashFailed = errors.New("flash access failed")
//
//	func load() error {
//		err := readSomething()
//		return checkpoint.Wrap(err, ErrFlashFailed)
//	}
//
// Callers may then test for both ErrFlashFailed and the error returned by
// readSomething with errors.Is.
func Wrap(cause, err error) error {
	if cause == nil || cause == io.EOF {
		return cause
	}

	return newCheckpoint(err, cause)
}

// Errorf is a shortcut for From(fmt.Errorf(format, args...)).
// Use %w to keep a sentinel matchable.
func Errorf(format string, args ...interface{}) error {
	return newCheckpoint(fmt.Errorf(format, args...), nil)
}

type checkpoint struct {
	err   error
	cause error

	file string
	line int
}

// newCheckpoint must be called directly by the exported constructors so that
// the skip count points at their caller.
func newCheckpoint(err, cause error) *checkpoint {
	cp := &checkpoint{
		err:   err,
		cause: cause,
	}

	if _, file, line, ok := runtime.Caller(2); ok {
		cp.file = filepath.Base(file)
		cp.line = line
	}
	return cp
}

func (c *checkpoint) position() string {
	if c.file == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(c.position())
	b.WriteString(": ")
	if c.err != nil {
		b.WriteString(c.err.Error())
	}

	if c.cause == nil {
		return b.String()
	}

	// Nested checkpoints already carry their own position.
	if _, ok := c.cause.(*checkpoint); ok {
		b.WriteString("\n\t")
		b.WriteString(strings.ReplaceAll(c.cause.Error(), "\n", "\n\t"))
		return b.String()
	}

	b.WriteString(": ")
	b.WriteString(c.cause.Error())
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.err != nil && errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.err != nil && errors.As(c.err, target)
}
