package ndb

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ndb package.
var (
	ErrNotFound             = errors.New("ndb: not found")
	ErrClosed               = errors.New("ndb: database is closed")
	ErrInvalidConfig        = errors.New("ndb: invalid config")
	ErrInvalidEvent         = errors.New("ndb: invalid event")
	ErrInvalidFilter        = errors.New("ndb: invalid filter")
	ErrTxnEnded             = errors.New("ndb: transaction already ended")
	ErrForeignTxn           = errors.New("ndb: transaction belongs to another database")
	ErrTooManyReaders       = errors.New("ndb: too many open read transactions")
	ErrSubscriptionNotFound = errors.New("ndb: subscription not found")
	ErrCorruptRecord        = errors.New("ndb: corrupt record")
)

// OpenError reports a failure to open the database at Path.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("ndb: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
