// Package db is the key/value layer under the event engine. It is backed by
// Pebble and offers logical column families (key-prefixed), atomic write
// batches, ordered iteration and point-in-time snapshots used for read
// transactions.
//
// [Store] is satisfied by [PebbleDB] (production) and [MockStore] (tests).
package db

import (
	"bytes"
	"errors"
	"io"
)

// Sentinel errors returned by Store implementations.
var (
	ErrClosed               = errors.New("db: database is closed")
	ErrColumnFamilyNotFound = errors.New("db: column family not found")
	ErrKeyNotFound          = errors.New("db: key not found")
	ErrNilKey               = errors.New("db: key must not be nil")
	ErrBatchClosed          = errors.New("db: batch is closed")
	ErrSnapshotClosed       = errors.New("db: snapshot is closed")
)

// DefaultColumnFamily is always registered.
const DefaultColumnFamily = "default"

// Reader is the read half shared by a live Store and a Snapshot.
type Reader interface {
	// Get returns a copy of the value stored under key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(cf string, key []byte) ([]byte, error)

	// NewIterator creates an iterator scoped to one column family.
	// The caller must Close it.
	NewIterator(cf string) (Iterator, error)
}

// Store defines the full read/write contract.
// All methods are safe for concurrent use.
type Store interface {
	Reader

	Put(cf string, key []byte, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(cf string, key []byte) error

	Has(cf string, key []byte) (bool, error)

	// NewBatch creates an atomic write batch. The caller must Close it,
	// even after Commit.
	NewBatch() Batch

	// NewSnapshot pins the current state for consistent reads. Writes
	// committed afterwards are invisible through the snapshot.
	NewSnapshot() (Snapshot, error)

	Flush() error

	// Close flushes and releases the engine. After Close every other
	// method returns ErrClosed.
	io.Closer
}

// Snapshot is an immutable point-in-time view of a Store.
type Snapshot interface {
	Reader
	io.Closer
}

// Batch buffers writes and applies them atomically on Commit.
type Batch interface {
	Put(cf string, key []byte, value []byte) error
	Delete(cf string, key []byte) error
	Count() int
	Commit() error
	Close()
}

// Iterator walks the keys of a single column family in order.
// Key and Value return copies that stay valid after the iterator moves.
type Iterator interface {
	// Seek positions the iterator at the first key >= target.
	Seek(target []byte)
	// SeekLT positions the iterator at the last key < target.
	SeekLT(target []byte)
	SeekToFirst()
	SeekToLast()
	Next()
	Prev()
	Valid() bool
	// Key returns the current key with the column family prefix stripped.
	Key() []byte
	Value() []byte
	Err() error
	Close()
}

// ScanPrefix calls fn for every key in cf that starts with prefix, in
// ascending order, until fn returns false.
func ScanPrefix(r Reader, cf string, prefix []byte, fn func(key, value []byte) bool) error {
	it, err := r.NewIterator(cf)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if !fn(k, it.Value()) {
			break
		}
	}
	return it.Err()
}

// ScanPrefixReverse is ScanPrefix in descending key order.
func ScanPrefixReverse(r Reader, cf string, prefix []byte, fn func(key, value []byte) bool) error {
	it, err := r.NewIterator(cf)
	if err != nil {
		return err
	}
	defer it.Close()

	if end := prefixEnd(prefix); end != nil {
		it.SeekLT(end)
	} else {
		it.SeekToLast()
	}
	for ; it.Valid(); it.Prev() {
		k := it.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if !fn(k, it.Value()) {
			break
		}
	}
	return it.Err()
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (empty or all-0xff prefix).
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
