package ndb

import (
	"fmt"
	"sync"

	"github.com/beyondbrewing/brewery-nostrdb/db"
)

// Txn is a read transaction: a consistent snapshot of the database taken
// at BeginTxn. Events ingested afterwards are not visible through it.
// A Txn must be ended exactly once.
type Txn struct {
	owner *Ndb
	snap  db.Snapshot

	mu    sync.RWMutex
	ended bool
}

// BeginTxn opens a read transaction. It fails fast with ErrTooManyReaders
// when MaxReaders transactions are already open.
func (n *Ndb) BeginTxn() (*Txn, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed.Load() {
		return nil, ErrClosed
	}
	if !n.readers.TryAcquire(1) {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyReaders, n.cfg.MaxReaders)
	}
	snap, err := n.store.NewSnapshot()
	if err != nil {
		n.readers.Release(1)
		return nil, fmt.Errorf("ndb: begin transaction: %w", err)
	}

	t := &Txn{owner: n, snap: snap}
	n.txnMu.Lock()
	n.txns[t] = struct{}{}
	n.txnMu.Unlock()
	return t, nil
}

// End releases the snapshot and the reader slot.
func (t *Txn) End() error {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return ErrTxnEnded
	}
	t.ended = true
	err := t.snap.Close()
	t.mu.Unlock()

	n := t.owner
	n.readers.Release(1)
	n.txnMu.Lock()
	delete(n.txns, t)
	n.txnMu.Unlock()

	if err != nil {
		return fmt.Errorf("ndb: end transaction: %w", err)
	}
	return nil
}

// Owner returns the database the transaction reads from.
func (t *Txn) Owner() *Ndb { return t.owner }
