package ndb

import (
	"cmp"
	"errors"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/beyondbrewing/brewery-nostrdb/db"
)

// QueryResult identifies one matching note.
type QueryResult struct {
	NoteKey   uint64
	CreatedAt uint64
}

// Query returns the notes matching any of filters, newest first, at most
// limit of them. Each filter additionally contributes no more than its own
// Limit. A non-positive limit yields no results.
func (n *Ndb) Query(txn *Txn, filters []Filter, limit int) ([]QueryResult, error) {
	out := []QueryResult{}
	err := n.view(txn, func(r db.Reader) error {
		if limit <= 0 {
			return nil
		}
		seen := make(map[uint64]struct{})
		for i := range filters {
			f := &filters[i]
			eff := limit
			if f.limit > 0 && f.limit < uint64(eff) {
				eff = int(f.limit)
			}
			res, err := queryFilter(r, f, eff)
			if err != nil {
				return err
			}
			for _, qr := range res {
				if _, dup := seen[qr.NoteKey]; dup {
					continue
				}
				seen[qr.NoteKey] = struct{}{}
				out = append(out, qr)
			}
		}
		sortNewestFirst(out)
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sortNewestFirst(rs []QueryResult) {
	slices.SortFunc(rs, func(a, b QueryResult) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.NoteKey, a.NoteKey)
	})
}

func queryFilter(r db.Reader, f *Filter, limit int) ([]QueryResult, error) {
	if !f.constrained() {
		return scanCreated(r, f, limit)
	}

	cand, err := candidates(r, f)
	if err != nil {
		return nil, err
	}

	out := make([]QueryResult, 0, min(int(cand.GetCardinality()), limit))
	it := cand.Iterator()
	for it.HasNext() {
		key := it.Next()
		ev, err := loadNote(r, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.Matches(ev) {
			out = append(out, QueryResult{NoteKey: key, CreatedAt: ev.CreatedAt})
		}
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scanCreated walks the time index backwards for filters that only
// constrain created_at.
func scanCreated(r db.Reader, f *Filter, limit int) ([]QueryResult, error) {
	var out []QueryResult
	err := db.ScanPrefixReverse(r, cfCreated, nil, func(k, _ []byte) bool {
		created, key, ok := splitSuffix(k)
		if !ok {
			return true
		}
		if f.hasSince && created < f.since {
			return false
		}
		if f.inRange(created) {
			out = append(out, QueryResult{NoteKey: key, CreatedAt: created})
		}
		return len(out) < limit
	})
	return out, err
}

// candidates intersects the index postings of every constrained field.
func candidates(r db.Reader, f *Filter) (*roaring64.Bitmap, error) {
	var sets []*roaring64.Bitmap

	if len(f.kinds) > 0 {
		bm := roaring64.New()
		for _, k := range f.kinds {
			if err := collectTimed(r, cfKinds, kindPrefix(k), f, bm); err != nil {
				return nil, err
			}
		}
		sets = append(sets, bm)
	}
	if len(f.authors) > 0 {
		bm := roaring64.New()
		for _, pk := range f.authors {
			if err := collectTimed(r, cfAuthors, pk[:], f, bm); err != nil {
				return nil, err
			}
		}
		sets = append(sets, bm)
	}
	for _, tf := range f.tags {
		bm := roaring64.New()
		for _, v := range tf.Values {
			if err := collectTimed(r, cfTags, tagPrefix(string(tf.Key), v), f, bm); err != nil {
				return nil, err
			}
		}
		sets = append(sets, bm)
	}
	for _, w := range f.words {
		bm := roaring64.New()
		err := db.ScanPrefix(r, cfWords, wordPrefix(w), func(k, _ []byte) bool {
			if key, ok := trailingKey(k); ok {
				bm.Add(key)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		sets = append(sets, bm)
	}

	slices.SortFunc(sets, func(a, b *roaring64.Bitmap) int {
		return cmp.Compare(a.GetCardinality(), b.GetCardinality())
	})
	acc := sets[0]
	for _, s := range sets[1:] {
		if acc.IsEmpty() {
			break
		}
		acc.And(s)
	}
	return acc, nil
}

// collectTimed adds the keys under prefix whose created_at is in range.
func collectTimed(r db.Reader, cf string, prefix []byte, f *Filter, bm *roaring64.Bitmap) error {
	return db.ScanPrefix(r, cf, prefix, func(k, _ []byte) bool {
		if created, key, ok := splitSuffix(k); ok && f.inRange(created) {
			bm.Add(key)
		}
		return true
	})
}
