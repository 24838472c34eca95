package wal

import (
	"errors"
	"fmt"

	"github.com/anikak11/durawal/randfile"
)

// ErrAssertion marks a violated local precondition: a missing or
// wrong-shaped argument, or a structural invariant the caller broke.
var ErrAssertion = errors.New("wal: assertion failed")

// ErrNotFound surfaces from the underlying random-access file when the
// log or index file is absent. It is randfile.ErrNotFound under another
// name so callers of this package never need to import randfile just to
// check errors.Is.
var ErrNotFound = randfile.ErrNotFound

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("wal: closed")

// OutOfOrderCommitError is the protocol error raised by Commit when the
// caller requests a commit that skips ahead of the next expected LSN.
// It is recoverable: the caller may re-drive the call with Expected.
type OutOfOrderCommitError struct {
	Expected int32
	Received int32
}

func (e *OutOfOrderCommitError) Error() string {
	return fmt.Sprintf("Out of order commit; expected %d but received %d", e.Expected, e.Received)
}

func assertf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
}
