package ndb

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/internal/testutil"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

func TestRecord_RoundTrip(t *testing.T) {
	s := testutil.NewSigner(4)
	events := map[string]*nostr.Event{
		"small": s.Event(t, nostr.KindTextNote, 1700000000, "gm"),
		"large": s.Event(t, nostr.KindTextNote, 1700000001, strings.Repeat("nostr relay ", 200),
			[]string{"e", strings.Repeat("ab", 32), "wss://relay.example", "reply"},
			[]string{"t", "nostr"},
			[]string{"client"},
		),
	}

	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		for name, ev := range events {
			t.Run(string(comp)+"/"+name, func(t *testing.T) {
				rec, err := encodeRecord(ev, comp)
				require.NoError(t, err)

				got, err := decodeRecord(rec)
				require.NoError(t, err)
				if diff := cmp.Diff(ev, got); diff != "" {
					t.Fatalf("record mismatch (-want +got):\n%s", diff)
				}
				require.NoError(t, got.Verify())
			})
		}
	}
}

func TestRecord_CompressesLargeContent(t *testing.T) {
	ev := testutil.NewSigner(4).Event(t, nostr.KindTextNote, 1, strings.Repeat("a", 4096))

	plain, err := encodeRecord(ev, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, codecNone, plain[0])

	for comp, codec := range map[Compression]byte{CompressionZstd: codecZstd, CompressionLZ4: codecLZ4} {
		rec, err := encodeRecord(ev, comp)
		require.NoError(t, err)
		assert.Equal(t, codec, rec[0], string(comp))
		assert.Less(t, len(rec), len(plain), string(comp))
	}
}

func TestRecord_Corrupt(t *testing.T) {
	ev := testutil.NewSigner(4).Event(t, nostr.KindTextNote, 1, "hello")
	rec, err := encodeRecord(ev, CompressionNone)
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":         nil,
		"unknown codec": {9, 1, 2, 3},
		"truncated":     rec[:len(rec)-2],
		"trailing":      append(append([]byte{}, rec...), 0),
		"huge length":   {codecZstd, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRecord(b)
			require.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, hello WORLD! a b2 #nostr café x")
	assert.Equal(t, []string{"hello", "world", "b2", "nostr", "café"}, got)
	assert.Empty(t, tokenize("a . !"))
}

func TestIndexKeys(t *testing.T) {
	k := withSuffix(kindPrefix(7), 1700000000, 42)
	created, key, ok := splitSuffix(k)
	require.True(t, ok)
	assert.EqualValues(t, 1700000000, created)
	assert.EqualValues(t, 42, key)

	last, ok := trailingKey(k)
	require.True(t, ok)
	assert.EqualValues(t, 42, last)

	_, _, ok = splitSuffix([]byte{1, 2})
	assert.False(t, ok)
}
