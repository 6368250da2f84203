package db

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
	"github.com/cockroachdb/pebble"
)

var (
	_ Store    = (*PebbleDB)(nil)
	_ Snapshot = (*pebbleSnapshot)(nil)
)

// PebbleDB is the production [Store]. Column families are key prefixes
// (cf + '\x00'), so each family occupies a disjoint sorted range.
type PebbleDB struct {
	db *pebble.DB

	// prefixes is immutable after Open.
	prefixes map[string][]byte

	writeOpts *pebble.WriteOptions
	path      string
	logger    logger.Logger

	// Operations hold the read lock; Close takes the write lock so
	// in-flight calls drain before teardown.
	closed atomic.Bool
	mu     sync.RWMutex

	// snapshots counts open snapshots so Close can report leaks.
	snapshots atomic.Int64
}

// pebbleReader is the subset of *pebble.DB and *pebble.Snapshot used for
// reads.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Open creates or opens a Pebble database at path.
func Open(path string, opts ...Option) (*PebbleDB, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "db")

	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:                    cache,
		MemTableSize:             cfg.MemTableSize,
		MaxOpenFiles:             cfg.MaxOpenFiles,
		MaxConcurrentCompactions: func() int { return cfg.MaxConcurrentCompactions },
		L0CompactionThreshold:    cfg.L0CompactionThreshold,
		L0StopWritesThreshold:    cfg.L0StopWritesThreshold,
		LBaseMaxBytes:            cfg.LBaseMaxBytes,
		WALDir:                   cfg.WALDir,
	}

	pdb, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open %s: %w", path, err)
	}

	prefixes := make(map[string][]byte, 1+len(cfg.ColumnFamilies))
	prefixes[DefaultColumnFamily] = cfPrefix(DefaultColumnFamily)
	for _, cf := range cfg.ColumnFamilies {
		prefixes[cf] = cfPrefix(cf)
	}

	writeOpts := pebble.NoSync
	if cfg.SyncWrites {
		writeOpts = pebble.Sync
	}

	p := &PebbleDB{
		db:        pdb,
		prefixes:  prefixes,
		writeOpts: writeOpts,
		path:      path,
		logger:    log,
	}

	log.Info("database opened", "path", path, "column_families", len(prefixes))
	return p, nil
}

func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return nil, ErrClosed
	}
	prefix, err := p.cfPrefix(cf)
	if err != nil {
		return nil, err
	}
	return readValue(p.db, prefix, key)
}

func (p *PebbleDB) Put(cf string, key, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}
	prefix, err := p.cfPrefix(cf)
	if err != nil {
		return err
	}
	if err := p.db.Set(prefixedKey(prefix, key), value, p.writeOpts); err != nil {
		return fmt.Errorf("db: put failed: %w", err)
	}
	return nil
}

func (p *PebbleDB) Delete(cf string, key []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}
	prefix, err := p.cfPrefix(cf)
	if err != nil {
		return err
	}
	if err := p.db.Delete(prefixedKey(prefix, key), p.writeOpts); err != nil {
		return fmt.Errorf("db: delete failed: %w", err)
	}
	return nil
}

func (p *PebbleDB) Has(cf string, key []byte) (bool, error) {
	_, err := p.Get(cf, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{owner: p, batch: p.db.NewBatch()}
}

func (p *PebbleDB) NewIterator(cf string) (Iterator, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return nil, ErrClosed
	}
	prefix, err := p.cfPrefix(cf)
	if err != nil {
		return nil, err
	}
	return newPebbleIterator(p.db, prefix)
}

// NewSnapshot pins the current sequence number. Snapshots must be closed
// before the database.
func (p *PebbleDB) NewSnapshot() (Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return nil, ErrClosed
	}
	p.snapshots.Add(1)
	return &pebbleSnapshot{owner: p, snap: p.db.NewSnapshot()}, nil
}

func (p *PebbleDB) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.Flush(); err != nil {
		return fmt.Errorf("db: flush failed: %w", err)
	}
	return nil
}

func (p *PebbleDB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	p.closed.Store(true)

	if n := p.snapshots.Load(); n > 0 {
		p.logger.Warn("closing with open snapshots", "snapshots", n)
	}
	p.logger.Info("closing database", "path", p.path)

	if err := p.db.Flush(); err != nil {
		p.logger.Error("flush failed during shutdown", "error", err)
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("db: close failed: %w", err)
	}

	p.logger.Info("database closed", "path", p.path)
	return nil
}

// cfPrefix returns the registered prefix for cf.
func (p *PebbleDB) cfPrefix(cf string) ([]byte, error) {
	prefix, ok := p.prefixes[cf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	return prefix, nil
}

type pebbleSnapshot struct {
	owner  *PebbleDB
	snap   *pebble.Snapshot
	closed atomic.Bool
}

func (s *pebbleSnapshot) Get(cf string, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	prefix, err := s.owner.cfPrefix(cf)
	if err != nil {
		return nil, err
	}
	return readValue(s.snap, prefix, key)
}

func (s *pebbleSnapshot) NewIterator(cf string) (Iterator, error) {
	if s.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	prefix, err := s.owner.cfPrefix(cf)
	if err != nil {
		return nil, err
	}
	return newPebbleIterator(s.snap, prefix)
}

func (s *pebbleSnapshot) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSnapshotClosed
	}
	s.owner.snapshots.Add(-1)
	if err := s.snap.Close(); err != nil {
		return fmt.Errorf("db: snapshot close failed: %w", err)
	}
	return nil
}

type pebbleBatch struct {
	owner  *PebbleDB
	batch  *pebble.Batch
	closed bool
}

func (b *pebbleBatch) Put(cf string, key, value []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	prefix, err := b.owner.cfPrefix(cf)
	if err != nil {
		return err
	}
	if err := b.batch.Set(prefixedKey(prefix, key), value, nil); err != nil {
		return fmt.Errorf("db: batch put failed: %w", err)
	}
	return nil
}

func (b *pebbleBatch) Delete(cf string, key []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	prefix, err := b.owner.cfPrefix(cf)
	if err != nil {
		return err
	}
	if err := b.batch.Delete(prefixedKey(prefix, key), nil); err != nil {
		return fmt.Errorf("db: batch delete failed: %w", err)
	}
	return nil
}

func (b *pebbleBatch) Count() int {
	return int(b.batch.Count())
}

func (b *pebbleBatch) Commit() error {
	if b.closed {
		return ErrBatchClosed
	}

	b.owner.mu.RLock()
	defer b.owner.mu.RUnlock()

	if b.owner.closed.Load() {
		return ErrClosed
	}
	if err := b.batch.Commit(b.owner.writeOpts); err != nil {
		return fmt.Errorf("db: batch commit failed: %w", err)
	}
	return nil
}

func (b *pebbleBatch) Close() {
	if !b.closed {
		_ = b.batch.Close()
		b.closed = true
	}
}

type pebbleIterator struct {
	iter      *pebble.Iterator
	prefix    []byte
	prefixLen int
	closed    bool
	err       error
}

func newPebbleIterator(r pebbleReader, prefix []byte) (*pebbleIterator, error) {
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: cfUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("db: new iterator failed: %w", err)
	}
	return &pebbleIterator{iter: iter, prefix: prefix, prefixLen: len(prefix)}, nil
}

func (it *pebbleIterator) Seek(target []byte)   { it.iter.SeekGE(prefixedKey(it.prefix, target)) }
func (it *pebbleIterator) SeekLT(target []byte) { it.iter.SeekLT(prefixedKey(it.prefix, target)) }
func (it *pebbleIterator) SeekToFirst()         { it.iter.First() }
func (it *pebbleIterator) SeekToLast()          { it.iter.Last() }
func (it *pebbleIterator) Next()                { it.iter.Next() }
func (it *pebbleIterator) Prev()                { it.iter.Prev() }
func (it *pebbleIterator) Valid() bool          { return it.iter.Valid() }

func (it *pebbleIterator) Key() []byte {
	raw := it.iter.Key()
	if len(raw) < it.prefixLen {
		return nil
	}
	out := make([]byte, len(raw)-it.prefixLen)
	copy(out, raw[it.prefixLen:])
	return out
}

func (it *pebbleIterator) Value() []byte {
	val, err := it.iter.ValueAndErr()
	if err != nil {
		it.err = err
		return nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out
}

func (it *pebbleIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Close() {
	if !it.closed {
		_ = it.iter.Close()
		it.closed = true
	}
}

func readValue(r pebbleReader, prefix, key []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	val, closer, err := r.Get(prefixedKey(prefix, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("db: get failed: %w", err)
	}
	defer closer.Close()

	// The slice is only valid until closer.Close().
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// cfPrefix builds "cf\x00".
func cfPrefix(cf string) []byte {
	b := make([]byte, len(cf)+1)
	copy(b, cf)
	return b
}

// cfUpperBound turns "cf\x00" into the exclusive bound "cf\x01".
func cfUpperBound(prefix []byte) []byte {
	b := make([]byte, len(prefix))
	copy(b, prefix)
	b[len(b)-1] = 0x01
	return b
}

func prefixedKey(prefix, key []byte) []byte {
	pk := make([]byte, len(prefix)+len(key))
	copy(pk, prefix)
	copy(pk[len(prefix):], key)
	return pk
}
