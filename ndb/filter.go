package ndb

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// MaxLimit is the largest accepted filter limit.
const MaxLimit = 100_000_000

// TagFilter matches events carrying a tag named Key whose first value is
// one of Values.
type TagFilter struct {
	Key    rune
	Values []string
}

// Filter is a finalized, immutable query filter. The zero Filter matches
// every event.
type Filter struct {
	kinds    []uint32
	authors  [][32]byte
	tags     []TagFilter
	since    uint64
	until    uint64
	hasSince bool
	hasUntil bool
	limit    uint64
	search   string
	words    []string
}

// Limit returns the filter's own result cap, or 0 if it has none.
func (f *Filter) Limit() uint64 { return f.limit }

// Search returns the full-text search term.
func (f *Filter) Search() string { return f.search }

func (f *Filter) constrained() bool {
	return len(f.kinds) > 0 || len(f.authors) > 0 || len(f.tags) > 0 || len(f.words) > 0
}

func (f *Filter) inRange(created uint64) bool {
	if f.hasSince && created < f.since {
		return false
	}
	if f.hasUntil && created > f.until {
		return false
	}
	return true
}

// Matches reports whether ev satisfies every constraint of f.
func (f *Filter) Matches(ev *nostr.Event) bool {
	if !f.inRange(ev.CreatedAt) {
		return false
	}
	if len(f.kinds) > 0 && !slices.Contains(f.kinds, ev.Kind) {
		return false
	}
	if len(f.authors) > 0 && !slices.Contains(f.authors, ev.PubKey) {
		return false
	}
	for _, tf := range f.tags {
		if !tf.matches(ev) {
			return false
		}
	}
	if len(f.words) > 0 {
		have := noteWords(ev)
		for _, w := range f.words {
			if !slices.Contains(have, w) {
				return false
			}
		}
	}
	return true
}

func (tf *TagFilter) matches(ev *nostr.Event) bool {
	name := string(tf.Key)
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name && slices.Contains(tf.Values, tag[1]) {
			return true
		}
	}
	return false
}

// FilterBuilder accumulates filter constraints. It is a value: every
// method returns an updated copy and leaves the receiver untouched, so a
// builder that has been advanced can be discarded without side effects.
//
// The first invalid argument is remembered; Err reports it and Build
// fails with it.
type FilterBuilder struct {
	f   Filter
	err error
}

// NewFilterBuilder returns an empty builder.
func NewFilterBuilder() FilterBuilder {
	return FilterBuilder{}
}

// Err returns the first validation error recorded by the builder.
func (b FilterBuilder) Err() error { return b.err }

func (b FilterBuilder) fail(format string, args ...any) FilterBuilder {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
	}
	return b
}

// Kinds adds event kinds; an event matches if its kind is any of them.
func (b FilterBuilder) Kinds(kinds ...uint32) FilterBuilder {
	b.f.kinds = append(slices.Clip(b.f.kinds), kinds...)
	return b
}

// Authors adds author public keys.
func (b FilterBuilder) Authors(pubkeys ...[32]byte) FilterBuilder {
	b.f.authors = append(slices.Clip(b.f.authors), pubkeys...)
	return b
}

// Tags adds a tag constraint. Repeated constraints must all match. A
// constraint with no values matches nothing.
func (b FilterBuilder) Tags(key rune, values ...string) FilterBuilder {
	if key == 0 || !utf8.ValidRune(key) {
		return b.fail("invalid tag key %q", key)
	}
	tf := TagFilter{Key: key, Values: slices.Clone(values)}
	b.f.tags = append(slices.Clip(b.f.tags), tf)
	return b
}

// Since sets the inclusive lower bound on created_at.
func (b FilterBuilder) Since(ts int64) FilterBuilder {
	if ts < 0 {
		return b.fail("since must not be negative, got %d", ts)
	}
	b.f.since, b.f.hasSince = uint64(ts), true
	return b
}

// Until sets the inclusive upper bound on created_at.
func (b FilterBuilder) Until(ts int64) FilterBuilder {
	if ts < 0 {
		return b.fail("until must not be negative, got %d", ts)
	}
	b.f.until, b.f.hasUntil = uint64(ts), true
	return b
}

// Limit caps the number of results this filter contributes.
func (b FilterBuilder) Limit(n int64) FilterBuilder {
	if n < 1 || n > MaxLimit {
		return b.fail("limit must be in 1..%d, got %d", MaxLimit, n)
	}
	b.f.limit = uint64(n)
	return b
}

// Search sets a full-text term. Every word of the term must occur in the
// note content. A term without indexable words is ignored.
func (b FilterBuilder) Search(term string) FilterBuilder {
	b.f.search = term
	b.f.words = tokenize(term)
	return b
}

// Build finalizes the filter.
func (b FilterBuilder) Build() (Filter, error) {
	if b.err != nil {
		return Filter{}, b.err
	}
	return b.f, nil
}
