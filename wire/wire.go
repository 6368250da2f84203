// Package wire defines the result formats that cross the handle boundary.
//
// Lists use a fixed little-endian layout:
//
//	key list:    [count u32][key u64]...
//	pubkey list: [count u32][pubkey 32B]...
//
// Whole records (notes, profiles) are JSON documents.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// ErrTruncated is returned when a list buffer is shorter than its count.
var ErrTruncated = errors.New("wire: truncated buffer")

const (
	countSize  = 4
	keySize    = 8
	pubkeySize = 32
)

// EncodeKeys serializes note keys.
func EncodeKeys(keys []uint64) []byte {
	buf := make([]byte, countSize, countSize+len(keys)*keySize)
	binary.LittleEndian.PutUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = binary.LittleEndian.AppendUint64(buf, k)
	}
	return buf
}

// DecodeKeys parses a key list.
func DecodeKeys(b []byte) ([]uint64, error) {
	n, body, err := readCount(b, keySize)
	if err != nil {
		return nil, err
	}
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint64(body[i*keySize:])
	}
	return keys, nil
}

// EncodePubkeys serializes 32-byte public keys.
func EncodePubkeys(pks [][32]byte) []byte {
	buf := make([]byte, countSize, countSize+len(pks)*pubkeySize)
	binary.LittleEndian.PutUint32(buf, uint32(len(pks)))
	for _, pk := range pks {
		buf = append(buf, pk[:]...)
	}
	return buf
}

// DecodePubkeys parses a pubkey list.
func DecodePubkeys(b []byte) ([][32]byte, error) {
	n, body, err := readCount(b, pubkeySize)
	if err != nil {
		return nil, err
	}
	out := make([][32]byte, n)
	for i := range out {
		copy(out[i][:], body[i*pubkeySize:])
	}
	return out, nil
}

func readCount(b []byte, elem int) (int, []byte, error) {
	if len(b) < countSize {
		return 0, nil, fmt.Errorf("%w: %d bytes, need count", ErrTruncated, len(b))
	}
	n := int(binary.LittleEndian.Uint32(b))
	body := b[countSize:]
	if len(body) < n*elem {
		return 0, nil, fmt.Errorf("%w: count %d needs %d bytes, have %d", ErrTruncated, n, n*elem, len(body))
	}
	return n, body, nil
}

// Note is the JSON document returned for a note lookup.
type Note struct {
	ID        string     `json:"id" yaml:"id"`
	PubKey    string     `json:"pubkey" yaml:"pubkey"`
	Kind      uint32     `json:"kind" yaml:"kind"`
	CreatedAt uint64     `json:"created_at" yaml:"created_at"`
	Content   string     `json:"content" yaml:"content"`
	Sig       string     `json:"sig" yaml:"sig"`
	Tags      [][]string `json:"tags" yaml:"tags"`
}

// NoteFromEvent converts an event to its transfer document.
func NoteFromEvent(ev *nostr.Event) Note {
	tags := make([][]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		if t == nil {
			t = []string{}
		}
		tags = append(tags, t)
	}
	return Note{
		ID:        hex.EncodeToString(ev.ID[:]),
		PubKey:    hex.EncodeToString(ev.PubKey[:]),
		Kind:      ev.Kind,
		CreatedAt: ev.CreatedAt,
		Content:   ev.Content,
		Sig:       hex.EncodeToString(ev.Sig[:]),
		Tags:      tags,
	}
}

// EncodeNote serializes an event for transfer.
func EncodeNote(ev *nostr.Event) ([]byte, error) {
	b, err := json.Marshal(NoteFromEvent(ev))
	if err != nil {
		return nil, fmt.Errorf("wire: encode note: %w", err)
	}
	return b, nil
}

// DecodeNote parses a transfer document back into an event.
func DecodeNote(b []byte) (*nostr.Event, error) {
	var n Note
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("wire: decode note: %w", err)
	}
	ev := &nostr.Event{
		Kind:      n.Kind,
		CreatedAt: n.CreatedAt,
		Content:   n.Content,
		Tags:      n.Tags,
	}
	if err := nostr.DecodeHex(ev.ID[:], n.ID); err != nil {
		return nil, fmt.Errorf("wire: decode note id: %w", err)
	}
	if err := nostr.DecodeHex(ev.PubKey[:], n.PubKey); err != nil {
		return nil, fmt.Errorf("wire: decode note pubkey: %w", err)
	}
	if err := nostr.DecodeHex(ev.Sig[:], n.Sig); err != nil {
		return nil, fmt.Errorf("wire: decode note sig: %w", err)
	}
	return ev, nil
}

// EncodeProfile serializes profile metadata. A nil profile becomes {}.
func EncodeProfile(p *nostr.Profile) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wire: encode profile: %w", err)
	}
	return b, nil
}

// DecodeProfile parses a profile document. An empty document yields a
// profile with every field nil.
func DecodeProfile(b []byte) (*nostr.Profile, error) {
	var p nostr.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("wire: decode profile: %w", err)
	}
	return &p, nil
}
