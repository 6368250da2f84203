package boundary

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// ErrAllocation is returned by an Env that cannot provide host memory.
var ErrAllocation = errors.New("boundary: host allocation failed")

// Env is the host side of one call. Raised errors surface in the host as
// an exception of the error's Category once the call returns.
type Env interface {
	// Throw raises err in the host.
	Throw(err *Error) error

	// NewByteArray copies b into host-owned memory.
	NewByteArray(b []byte) ([]byte, error)
}

// LocalEnv is an in-process Env. It records raised errors so callers can
// inspect them after each call. Safe for concurrent use.
type LocalEnv struct {
	// MaxArrayLen makes NewByteArray fail for larger arrays when positive.
	MaxArrayLen int

	mu     sync.Mutex
	raised []*Error
}

// NewLocalEnv returns an env with no allocation limit.
func NewLocalEnv() *LocalEnv {
	return &LocalEnv{}
}

func (e *LocalEnv) Throw(err *Error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raised = append(e.raised, err)
	return nil
}

func (e *LocalEnv) NewByteArray(b []byte) ([]byte, error) {
	if e.MaxArrayLen > 0 && len(b) > e.MaxArrayLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrAllocation, len(b), e.MaxArrayLen)
	}
	out := bytes.Clone(b)
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// TakeError returns and clears the most recent raised error, or nil.
// Earlier errors are discarded.
func (e *LocalEnv) TakeError() *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.raised) == 0 {
		return nil
	}
	last := e.raised[len(e.raised)-1]
	e.raised = e.raised[:0]
	return last
}

// Raised returns every error raised so far.
func (e *LocalEnv) Raised() []*Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Error(nil), e.raised...)
}
