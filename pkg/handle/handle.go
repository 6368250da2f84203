// Package handle maps live Go objects to opaque 64-bit integers that can be
// handed to a foreign caller and later turned back into the object.
//
// A handle packs three fields:
//
//	bits 63..56  tag (which table minted it)
//	bits 55..32  slot generation
//	bits 31..0   slot index
//
// Zero is never a valid handle. When a slot is released its generation is
// bumped, so an old handle value that points at a reused slot is reported
// as stale instead of resolving to the new occupant.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors returned by Table lookups.
var (
	ErrNull     = errors.New("handle: null handle")
	ErrStale    = errors.New("handle: stale or released handle")
	ErrWrongTag = errors.New("handle: handle belongs to another table")
)

// Handle is the integer form of a registered object.
type Handle int64

// Tag identifies the table a handle came from. Tag 0 is reserved.
type Tag uint8

const (
	indexBits = 32
	genBits   = 24
	genMask   = 1<<genBits - 1
)

// Tag returns the table tag encoded in h.
func (h Handle) Tag() Tag { return Tag(uint64(h) >> (indexBits + genBits)) }

func (h Handle) generation() uint32 { return uint32(uint64(h)>>indexBits) & genMask }
func (h Handle) index() uint32      { return uint32(uint64(h)) }

func makeHandle(tag Tag, gen, idx uint32) Handle {
	return Handle(uint64(tag)<<(indexBits+genBits) | uint64(gen&genMask)<<indexBits | uint64(idx))
}

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Table is a generation-checked arena of values of one type.
// It is safe for concurrent use.
type Table[T any] struct {
	tag  Tag
	mu   sync.Mutex
	slot []slot[T]
	free []uint32
	live int
}

// NewTable creates a table whose handles carry tag. Tag must be non-zero.
func NewTable[T any](tag Tag) *Table[T] {
	if tag == 0 {
		panic("handle: tag 0 is reserved")
	}
	return &Table[T]{tag: tag}
}

// Insert registers v and returns its handle.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slot))
		// Generations start at 1 so a handle is never zero.
		t.slot = append(t.slot, slot[T]{gen: 1})
	}
	s := &t.slot[idx]
	s.live = true
	s.val = v
	t.live++
	return makeHandle(t.tag, s.gen, idx)
}

// Get resolves h without changing ownership.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.val, nil
}

// Take resolves h and releases its slot in one step. The handle (and any
// copy of its value held by the caller) is invalid afterwards.
func (t *Table[T]) Take(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	v := s.val
	s.val = zero
	s.live = false
	s.gen = s.gen%genMask + 1
	t.free = append(t.free, h.index())
	t.live--
	return v, nil
}

// Owns reports whether h was minted by this table, live or not.
func (t *Table[T]) Owns(h Handle) bool {
	return h != 0 && h.Tag() == t.tag
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	if h == 0 {
		return nil, ErrNull
	}
	if h.Tag() != t.tag {
		return nil, fmt.Errorf("%w: tag %d, want %d", ErrWrongTag, h.Tag(), t.tag)
	}
	idx := h.index()
	if int(idx) >= len(t.slot) {
		return nil, ErrStale
	}
	s := &t.slot[idx]
	if !s.live || s.gen != h.generation() {
		return nil, ErrStale
	}
	return s, nil
}
