package db

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	_ Store    = (*MockStore)(nil)
	_ Snapshot = (*mockSnapshot)(nil)
)

// MockStore is an in-memory [Store] for tests. It is thread-safe and
// supports snapshots by copying the current state.
//
//	store := db.NewMockStore("notes", "ids")
//	defer store.Close()
type MockStore struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte // cf -> key -> value
	closed atomic.Bool
}

// NewMockStore creates a MockStore with the given column families.
func NewMockStore(cfs ...string) *MockStore {
	m := &MockStore{data: make(map[string]map[string][]byte, 1+len(cfs))}
	m.data[DefaultColumnFamily] = make(map[string][]byte)
	for _, cf := range cfs {
		m.data[cf] = make(map[string][]byte)
	}
	return m
}

func (m *MockStore) Get(cf string, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrClosed
	}
	return mockGet(m.data, cf, key)
}

func (m *MockStore) Put(cf string, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}
	bucket, ok := m.data[cf]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	bucket[string(key)] = bytes.Clone(value)
	return nil
}

func (m *MockStore) Delete(cf string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}
	bucket, ok := m.data[cf]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	delete(bucket, string(key))
	return nil
}

func (m *MockStore) Has(cf string, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false, ErrClosed
	}
	if key == nil {
		return false, ErrNilKey
	}
	bucket, ok := m.data[cf]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	_, exists := bucket[string(key)]
	return exists, nil
}

func (m *MockStore) NewBatch() Batch {
	return &mockBatch{store: m}
}

func (m *MockStore) NewIterator(cf string) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrClosed
	}
	return mockIter(m.data, cf)
}

// NewSnapshot deep-copies every column family.
func (m *MockStore) NewSnapshot() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrClosed
	}
	copied := make(map[string]map[string][]byte, len(m.data))
	for cf, bucket := range m.data {
		copied[cf] = maps.Clone(bucket)
	}
	return &mockSnapshot{data: copied}, nil
}

func (m *MockStore) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	m.closed.Store(true)
	m.data = nil
	return nil
}

// Len returns the number of keys in cf, or -1 if cf is unknown or the
// store is closed.
func (m *MockStore) Len(cf string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return -1
	}
	bucket, ok := m.data[cf]
	if !ok {
		return -1
	}
	return len(bucket)
}

// Values stored in buckets are never mutated in place (Put and Commit
// replace them), so snapshots can share them with the live map.
type mockSnapshot struct {
	data   map[string]map[string][]byte
	closed atomic.Bool
}

func (s *mockSnapshot) Get(cf string, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	return mockGet(s.data, cf, key)
}

func (s *mockSnapshot) NewIterator(cf string) (Iterator, error) {
	if s.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	return mockIter(s.data, cf)
}

func (s *mockSnapshot) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSnapshotClosed
	}
	return nil
}

func mockGet(data map[string]map[string][]byte, cf string, key []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	bucket, ok := data[cf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	v, ok := bucket[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func mockIter(data map[string]map[string][]byte, cf string) (Iterator, error) {
	bucket, ok := data[cf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	keys := slices.Sorted(maps.Keys(bucket))
	entries := make([]mockEntry, len(keys))
	for i, k := range keys {
		entries[i] = mockEntry{key: []byte(k), value: bucket[k]}
	}
	return &mockIterator{entries: entries, pos: -1}, nil
}

type mockOp struct {
	del   bool
	cf    string
	key   string
	value []byte
}

type mockBatch struct {
	store  *MockStore
	ops    []mockOp
	closed bool
}

func (b *mockBatch) Put(cf string, key, value []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	// Families are fixed after construction.
	if _, ok := b.store.data[cf]; !ok {
		return fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	b.ops = append(b.ops, mockOp{cf: cf, key: string(key), value: bytes.Clone(value)})
	return nil
}

func (b *mockBatch) Delete(cf string, key []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	if _, ok := b.store.data[cf]; !ok {
		return fmt.Errorf("%w: %q", ErrColumnFamilyNotFound, cf)
	}
	b.ops = append(b.ops, mockOp{del: true, cf: cf, key: string(key)})
	return nil
}

func (b *mockBatch) Count() int {
	return len(b.ops)
}

func (b *mockBatch) Commit() error {
	if b.closed {
		return ErrBatchClosed
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if b.store.closed.Load() {
		return ErrClosed
	}
	for _, op := range b.ops {
		if op.del {
			delete(b.store.data[op.cf], op.key)
		} else {
			b.store.data[op.cf][op.key] = op.value
		}
	}
	return nil
}

func (b *mockBatch) Close() {
	b.closed = true
	b.ops = nil
}

type mockEntry struct {
	key   []byte
	value []byte
}

type mockIterator struct {
	entries []mockEntry
	pos     int
}

func (it *mockIterator) Seek(target []byte) {
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i].key, target) >= 0
	})
}

func (it *mockIterator) SeekLT(target []byte) {
	it.Seek(target)
	it.pos--
}

func (it *mockIterator) SeekToFirst() { it.pos = 0 }
func (it *mockIterator) SeekToLast()  { it.pos = len(it.entries) - 1 }
func (it *mockIterator) Next()        { it.pos++ }
func (it *mockIterator) Prev()        { it.pos-- }

func (it *mockIterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.entries)
}

func (it *mockIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return bytes.Clone(it.entries[it.pos].key)
}

func (it *mockIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return bytes.Clone(it.entries[it.pos].value)
}

func (it *mockIterator) Err() error { return nil }
func (it *mockIterator) Close()     {}
