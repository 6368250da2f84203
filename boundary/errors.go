package boundary

import (
	"errors"
	"fmt"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
)

// Kind classifies a failure inside a bridge call.
type Kind int

const (
	BoundaryFailure Kind = iota + 1
	EngineNotFound
	EngineOpenFailed
	EngineOther
	InvalidLength
	NullHandle
	InvalidEncoding
	SerializationFailure
	FilterBuildFailure
	InvalidState
	NativePanic
)

var kindNames = map[Kind]string{
	BoundaryFailure:      "BoundaryFailure",
	EngineNotFound:       "EngineNotFound",
	EngineOpenFailed:     "EngineOpenFailed",
	EngineOther:          "EngineOther",
	InvalidLength:        "InvalidLength",
	NullHandle:           "NullHandle",
	InvalidEncoding:      "InvalidEncoding",
	SerializationFailure: "SerializationFailure",
	FilterBuildFailure:   "FilterBuildFailure",
	InvalidState:         "InvalidState",
	NativePanic:          "NativePanic",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Category is the host-side error class a Kind is raised as.
type Category int

const (
	CategoryRuntime Category = iota + 1
	CategoryNotFound
	CategoryIO
	CategoryLibrary
	CategoryIllegalArgument
	CategoryNullReference
	CategoryIllegalState
)

var categoryNames = map[Category]string{
	CategoryRuntime:         "runtime",
	CategoryNotFound:        "not-found",
	CategoryIO:              "io",
	CategoryLibrary:         "library",
	CategoryIllegalArgument: "illegal-argument",
	CategoryNullReference:   "null-reference",
	CategoryIllegalState:    "illegal-state",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Category returns the host category k is raised as.
func (k Kind) Category() Category {
	switch k {
	case EngineNotFound:
		return CategoryNotFound
	case EngineOpenFailed:
		return CategoryIO
	case EngineOther, SerializationFailure, FilterBuildFailure:
		return CategoryLibrary
	case InvalidLength, InvalidEncoding:
		return CategoryIllegalArgument
	case NullHandle:
		return CategoryNullReference
	case InvalidState:
		return CategoryIllegalState
	default:
		return CategoryRuntime
	}
}

// Error is a classified bridge failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Category is shorthand for e.Kind.Category().
func (e *Error) Category() Category { return e.Kind.Category() }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// classify maps any error returned inside a bridge call to an *Error.
func classify(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	var oe *ndb.OpenError
	switch {
	case errors.As(err, &oe):
		return &Error{Kind: EngineOpenFailed, Err: err}
	case errors.Is(err, ndb.ErrNotFound), errors.Is(err, ndb.ErrSubscriptionNotFound):
		return &Error{Kind: EngineNotFound, Err: err}
	case errors.Is(err, ndb.ErrInvalidFilter):
		return &Error{Kind: FilterBuildFailure, Err: err}
	case errors.Is(err, handle.ErrNull):
		return &Error{Kind: NullHandle, Err: err}
	case errors.Is(err, handle.ErrStale), errors.Is(err, handle.ErrWrongTag),
		errors.Is(err, ndb.ErrTxnEnded), errors.Is(err, ndb.ErrForeignTxn):
		return &Error{Kind: InvalidState, Err: err}
	default:
		return &Error{Kind: EngineOther, Err: err}
	}
}
