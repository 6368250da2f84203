package ndb

import (
	"encoding/binary"
)

// Column families. Index keys end in created_at|note_key (both big-endian)
// so a prefix scan yields notes in time order and the note key can be read
// from the last eight bytes.
const (
	cfNotes    = "notes"    // note_key -> record
	cfIDs      = "ids"      // event id -> note_key
	cfCreated  = "created"  // created|key
	cfKinds    = "kinds"    // kind(4)|created|key
	cfAuthors  = "authors"  // pubkey(32)|created|key
	cfTags     = "tags"     // name 0x00 value 0x00 created|key
	cfWords    = "words"    // word 0x00 key
	cfProfiles = "profiles" // pubkey -> note_key|created
	cfNames    = "pnames"   // lowercased name 0x00 pubkey
	cfMeta     = "meta"
)

var metaNextKey = []byte("next_key")

// ColumnFamilies lists the families an engine store must provide.
func ColumnFamilies() []string {
	return []string{cfNotes, cfIDs, cfCreated, cfKinds, cfAuthors, cfTags, cfWords, cfProfiles, cfNames, cfMeta}
}

const suffixLen = 16

func u64Key(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}

func kindPrefix(kind uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4+suffixLen), kind)
}

func tagPrefix(name, value string) []byte {
	b := make([]byte, 0, len(name)+len(value)+2+suffixLen)
	b = append(b, name...)
	b = append(b, 0)
	b = append(b, value...)
	return append(b, 0)
}

func wordPrefix(word string) []byte {
	b := make([]byte, 0, len(word)+1+8)
	b = append(b, word...)
	return append(b, 0)
}

func namePrefix(name string) []byte {
	return []byte(name)
}

// withSuffix appends created|key to a copy of prefix.
func withSuffix(prefix []byte, created, key uint64) []byte {
	b := make([]byte, 0, len(prefix)+suffixLen)
	b = append(b, prefix...)
	b = binary.BigEndian.AppendUint64(b, created)
	return binary.BigEndian.AppendUint64(b, key)
}

// splitSuffix reads created|key from the end of an index key.
func splitSuffix(k []byte) (created, key uint64, ok bool) {
	if len(k) < suffixLen {
		return 0, 0, false
	}
	tail := k[len(k)-suffixLen:]
	return binary.BigEndian.Uint64(tail), binary.BigEndian.Uint64(tail[8:]), true
}

// trailingKey reads the note key from the last eight bytes.
func trailingKey(k []byte) (uint64, bool) {
	if len(k) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k[len(k)-8:]), true
}
