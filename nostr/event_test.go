package nostr_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/internal/testutil"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

func TestEvent_SignParseVerify(t *testing.T) {
	s := testutil.NewSigner(1)
	ev := s.Event(t, nostr.KindTextNote, 1700000000, "hello\n\"nostr\"",
		[]string{"p", strings.Repeat("ab", 32)},
		[]string{"t", "go"},
	)
	require.NoError(t, ev.Verify())

	parsed, err := nostr.ParseEvent([]byte(testutil.JSON(t, ev)))
	require.NoError(t, err)
	if diff := cmp.Diff(ev, parsed); diff != "" {
		t.Fatalf("parsed event mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, parsed.Verify())
	assert.Equal(t, []string{"go"}, parsed.TagValues("t"))
}

func TestEvent_TamperedContentFailsVerify(t *testing.T) {
	ev := testutil.NewSigner(2).Event(t, nostr.KindTextNote, 1, "original")
	ev.Content = "changed"
	require.ErrorIs(t, ev.Verify(), nostr.ErrIDMismatch)
}

func TestEvent_BadSignatureFailsVerify(t *testing.T) {
	ev := testutil.NewSigner(3).Event(t, nostr.KindTextNote, 1, "x")
	ev.Sig[0] ^= 0xff
	require.ErrorIs(t, ev.Verify(), nostr.ErrInvalidSignature)
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":  `{`,
		"short id":  `{"id":"abcd","pubkey":"","sig":""}`,
		"bad hex":   `{"id":"` + strings.Repeat("zz", 32) + `"}`,
		"kind type": `{"kind":"one"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := nostr.ParseEvent([]byte(in))
			require.ErrorIs(t, err, nostr.ErrMalformed)
		})
	}
}

func TestSerialize_Escaping(t *testing.T) {
	ev := &nostr.Event{Kind: 1, CreatedAt: 5, Content: "a\"b\\c\nd\te\x01<&>é"}
	got := string(ev.Serialize())
	want := `[0,"` + strings.Repeat("00", 32) + `",5,1,[],"a\"b\\c\nd\te\u0001<&>é"]`
	assert.Equal(t, want, got)
}

func TestMarshalJSON_EmptyTags(t *testing.T) {
	b, err := json.Marshal(&nostr.Event{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tags":[]`)
}

func TestFilterSpec_Unmarshal(t *testing.T) {
	pk := strings.Repeat("cd", 32)
	var f nostr.FilterSpec
	err := json.Unmarshal([]byte(`{"kinds":[1,7],"authors":["`+pk+`"],"#e":["x","y"],"#d":["slug"],"since":10,"limit":5,"search":"hello"}`), &f)
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 7}, f.Kinds)
	require.Len(t, f.Authors, 1)
	assert.Equal(t, byte(0xcd), f.Authors[0][0])
	assert.Equal(t, []string{"d", "e"}, f.TagNames())
	assert.Equal(t, []string{"x", "y"}, f.Tags["e"])
	require.NotNil(t, f.Since)
	assert.EqualValues(t, 10, *f.Since)
	assert.Nil(t, f.Until)
	require.NotNil(t, f.Limit)
	assert.EqualValues(t, 5, *f.Limit)
	assert.Equal(t, "hello", f.Search)

	require.ErrorIs(t, json.Unmarshal([]byte(`{"ids":["a"]}`), &f), nostr.ErrMalformed)
	require.ErrorIs(t, json.Unmarshal([]byte(`{"authors":["nothex"]}`), &f), nostr.ErrMalformed)
}

func TestParseProfile(t *testing.T) {
	p, err := nostr.ParseProfile(`{"name":"Alice","display_name":"alice","about":"hi","extra":1}`)
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Alice", *p.Name)
	assert.Nil(t, p.Picture)
	assert.Equal(t, []string{"alice"}, p.SearchNames())

	_, err = nostr.ParseProfile("not json")
	require.ErrorIs(t, err, nostr.ErrMalformed)
}
