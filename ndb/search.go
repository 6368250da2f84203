package ndb

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

const (
	minWordRunes = 2
	maxWordBytes = 64
)

// tokenize splits text into lowercased words of letters and digits,
// dropping duplicates and words that are too short or too long to index.
func tokenize(text string) []string {
	var words []string
	seen := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) < minWordRunes || len(w) > maxWordBytes {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

// noteWords returns the words a note is found by in full-text search.
// Profile content is metadata and is searched by name instead.
func noteWords(ev *nostr.Event) []string {
	if ev.Kind == nostr.KindProfile {
		return nil
	}
	return tokenize(ev.Content)
}

// SearchProfile returns the public keys of profiles whose name or display
// name starts with query (case-insensitive), ordered by name. Each pubkey
// is reported once.
func (n *Ndb) SearchProfile(txn *Txn, query string, limit int) ([][32]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	r, err := n.reader(txn)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return [][32]byte{}, nil
	}

	out := [][32]byte{}
	seen := make(map[[32]byte]struct{})
	err = db.ScanPrefix(r, cfNames, namePrefix(q), func(k, _ []byte) bool {
		if len(k) < 33 || k[len(k)-33] != 0 {
			return true
		}
		var pk [32]byte
		copy(pk[:], k[len(k)-32:])
		if _, dup := seen[pk]; dup {
			return true
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
