// Package nostr holds the Nostr event model: JSON parsing, the canonical
// serialization used for event ids, and BIP-340 signing/verification.
package nostr

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Sentinel errors for event validation.
var (
	ErrMalformed        = errors.New("nostr: malformed event")
	ErrIDMismatch       = errors.New("nostr: id does not match content")
	ErrInvalidSignature = errors.New("nostr: invalid signature")
)

// Kinds with special handling.
const (
	KindProfile  uint32 = 0
	KindTextNote uint32 = 1
	KindContacts uint32 = 3
	KindReaction uint32 = 7
)

// Event is a parsed Nostr event.
type Event struct {
	ID        [32]byte
	PubKey    [32]byte
	CreatedAt uint64
	Kind      uint32
	Tags      [][]string
	Content   string
	Sig       [64]byte
}

type rawEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt uint64     `json:"created_at"`
	Kind      uint32     `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// ParseEvent decodes the standard JSON form of an event. It checks field
// shapes only; use Verify for id and signature checks.
func ParseEvent(data []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	ev := &Event{
		CreatedAt: raw.CreatedAt,
		Kind:      raw.Kind,
		Tags:      raw.Tags,
		Content:   raw.Content,
	}
	if ev.Tags == nil {
		ev.Tags = [][]string{}
	}
	if err := DecodeHex(ev.ID[:], raw.ID); err != nil {
		return nil, fmt.Errorf("%w: id: %w", ErrMalformed, err)
	}
	if err := DecodeHex(ev.PubKey[:], raw.PubKey); err != nil {
		return nil, fmt.Errorf("%w: pubkey: %w", ErrMalformed, err)
	}
	if err := DecodeHex(ev.Sig[:], raw.Sig); err != nil {
		return nil, fmt.Errorf("%w: sig: %w", ErrMalformed, err)
	}
	return ev, nil
}

// MarshalJSON emits the standard wire form with hex-encoded binary fields.
func (e *Event) MarshalJSON() ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	return json.Marshal(rawEvent{
		ID:        hex.EncodeToString(e.ID[:]),
		PubKey:    hex.EncodeToString(e.PubKey[:]),
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		Tags:      tags,
		Content:   e.Content,
		Sig:       hex.EncodeToString(e.Sig[:]),
	})
}

// Serialize returns the NIP-01 commitment
// [0,<pubkey>,<created_at>,<kind>,<tags>,<content>] hashed into the id.
func (e *Event) Serialize() []byte {
	var b bytes.Buffer
	b.WriteString(`[0,"`)
	b.WriteString(hex.EncodeToString(e.PubKey[:]))
	b.WriteString(`",`)
	b.WriteString(strconv.FormatUint(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(e.Kind), 10))
	b.WriteString(",[")
	for i, tag := range e.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, s := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeString(&b, s)
		}
		b.WriteByte(']')
	}
	b.WriteString("],")
	writeString(&b, e.Content)
	b.WriteByte(']')
	return b.Bytes()
}

// ComputeID hashes the canonical serialization.
func (e *Event) ComputeID() [32]byte {
	return chainhash.HashH(e.Serialize())
}

// Verify checks that the id matches the content and that the signature is
// a valid BIP-340 signature of the id by the pubkey.
func (e *Event) Verify() error {
	if e.ComputeID() != e.ID {
		return ErrIDMismatch
	}
	pub, err := schnorr.ParsePubKey(e.PubKey[:])
	if err != nil {
		return fmt.Errorf("%w: pubkey: %w", ErrInvalidSignature, err)
	}
	sig, err := schnorr.ParseSignature(e.Sig[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !sig.Verify(e.ID[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign sets PubKey, ID and Sig from the given private key.
func (e *Event) Sign(priv *btcec.PrivateKey) error {
	copy(e.PubKey[:], schnorr.SerializePubKey(priv.PubKey()))
	e.ID = e.ComputeID()
	sig, err := schnorr.Sign(priv, e.ID[:])
	if err != nil {
		return fmt.Errorf("nostr: sign: %w", err)
	}
	copy(e.Sig[:], sig.Serialize())
	return nil
}

// TagValues returns the second element of every tag whose name is key.
func (e *Event) TagValues(key string) []string {
	var out []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == key {
			out = append(out, tag[1])
		}
	}
	return out
}

// writeString writes s as a JSON string using the NIP-01 escaping rules:
// only quote, backslash and control characters are escaped.
func writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20:
			fmt.Fprintf(b, `\u%04x`, r)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	b.WriteByte('"')
}
