// Package testutil builds signed Nostr events for tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// Signer signs events with a deterministic key derived from a seed byte.
type Signer struct {
	priv *btcec.PrivateKey
}

// NewSigner returns a signer whose private key is 32 copies of seed.
// seed must be non-zero.
func NewSigner(seed byte) *Signer {
	var k [32]byte
	for i := range k {
		k[i] = seed
	}
	priv, _ := btcec.PrivKeyFromBytes(k[:])
	return &Signer{priv: priv}
}

// PubKey returns the x-only public key.
func (s *Signer) PubKey() [32]byte {
	var pk [32]byte
	copy(pk[:], schnorr.SerializePubKey(s.priv.PubKey()))
	return pk
}

// Event builds and signs an event.
func (s *Signer) Event(t testing.TB, kind uint32, createdAt uint64, content string, tags ...[]string) *nostr.Event {
	t.Helper()

	if tags == nil {
		tags = [][]string{}
	}
	ev := &nostr.Event{
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if err := ev.Sign(s.priv); err != nil {
		t.Fatalf("sign event: %v", err)
	}
	return ev
}

// JSON encodes an event in its wire form.
func JSON(t testing.TB, ev *nostr.Event) string {
	t.Helper()

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(b)
}
