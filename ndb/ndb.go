// Package ndb is an embedded Nostr event database on top of the db
// key/value layer. It ingests signed events, maintains kind, author, tag,
// time, word and profile-name indexes, answers filter queries inside
// snapshot read transactions and feeds newly ingested notes to
// subscriptions.
package ndb

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// Ndb is an open event database. All methods are safe for concurrent use.
type Ndb struct {
	cfg     *Config
	store   db.Store
	logger  logger.Logger
	readers *semaphore.Weighted

	// Operations hold the read lock; Close takes the write lock so
	// in-flight calls drain before teardown.
	mu     sync.RWMutex
	closed atomic.Bool

	// wmu serializes ingestion and guards nextKey.
	wmu     sync.Mutex
	nextKey uint64

	txnMu sync.Mutex
	txns  map[*Txn]struct{}

	subs *subscriptions
}

// Open creates or opens a database directory at path.
func Open(path string, opts ...Option) (*Ndb, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	storeOpts := append([]db.Option{db.WithLogger(cfg.Logger)}, cfg.StoreOptions...)
	storeOpts = append(storeOpts, db.WithColumnFamilies(ColumnFamilies()...))
	store, err := db.Open(path, storeOpts...)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	n, err := newNdb(store, cfg)
	if err != nil {
		_ = store.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return n, nil
}

// OpenStore runs the engine on an existing store, which must provide
// every family in ColumnFamilies. The engine takes ownership of store and
// closes it on Close.
func OpenStore(store db.Store, opts ...Option) (*Ndb, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return newNdb(store, cfg)
}

func buildConfig(opts []Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return cfg, nil
}

func newNdb(store db.Store, cfg *Config) (*Ndb, error) {
	next := uint64(1)
	v, err := store.Get(cfMeta, metaNextKey)
	switch {
	case err == nil:
		key, ok := trailingKey(v)
		if !ok || len(v) != 8 {
			return nil, fmt.Errorf("%w: next key is %d bytes", ErrCorruptRecord, len(v))
		}
		next = key
	case !errors.Is(err, db.ErrKeyNotFound):
		return nil, fmt.Errorf("ndb: read next key: %w", err)
	}

	log := cfg.Logger.With("component", "ndb")
	n := &Ndb{
		cfg:     cfg,
		store:   store,
		logger:  log,
		readers: semaphore.NewWeighted(int64(cfg.MaxReaders)),
		nextKey: next,
		txns:    make(map[*Txn]struct{}),
		subs:    newSubscriptions(cfg.SubscriptionQueue, log),
	}
	log.Info("event database ready",
		"next_key", next,
		"verify_signatures", cfg.VerifySignatures,
		"compression", cfg.Compression,
	)
	return n, nil
}

// Close ends any transactions still open, drops all subscriptions and
// closes the store.
func (n *Ndb) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	n.txnMu.Lock()
	open := make([]*Txn, 0, len(n.txns))
	for t := range n.txns {
		open = append(open, t)
	}
	n.txnMu.Unlock()
	if len(open) > 0 {
		n.logger.Warn("closing with open transactions", "transactions", len(open))
	}
	for _, t := range open {
		_ = t.End()
	}

	n.subs.clear()
	if err := n.store.Close(); err != nil {
		return fmt.Errorf("ndb: close store: %w", err)
	}
	n.logger.Info("event database closed")
	return nil
}

// view runs fn against the snapshot of txn.
func (n *Ndb) view(txn *Txn, fn func(r db.Reader) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	r, err := n.reader(txn)
	if err != nil {
		return err
	}
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	if txn.ended {
		return ErrTxnEnded
	}
	return fn(r)
}

// reader validates txn against n. Callers hold n.mu.
func (n *Ndb) reader(txn *Txn) (db.Reader, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}
	if txn == nil {
		return nil, ErrTxnEnded
	}
	if txn.owner != n {
		return nil, ErrForeignTxn
	}
	return txn.snap, nil
}

func loadNote(r db.Reader, key uint64) (*nostr.Event, error) {
	rec, err := r.Get(cfNotes, u64Key(key))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(rec)
}

// GetNoteByID returns the note with the given event id and its key.
func (n *Ndb) GetNoteByID(txn *Txn, id [32]byte) (*nostr.Event, uint64, error) {
	var (
		ev  *nostr.Event
		key uint64
	)
	err := n.view(txn, func(r db.Reader) error {
		kb, err := r.Get(cfIDs, id[:])
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		k, ok := trailingKey(kb)
		if !ok {
			return fmt.Errorf("%w: id index value is %d bytes", ErrCorruptRecord, len(kb))
		}
		key = k
		ev, err = loadNote(r, k)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return ev, key, nil
}

// GetNoteByKey returns the note stored under key.
func (n *Ndb) GetNoteByKey(txn *Txn, key uint64) (*nostr.Event, error) {
	var ev *nostr.Event
	err := n.view(txn, func(r db.Reader) error {
		var err error
		ev, err = loadNote(r, key)
		return err
	})
	return ev, err
}
