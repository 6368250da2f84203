package ndb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/internal/testutil"
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

func TestProfile_NewestWins(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(20)

	v1 := s.Event(t, nostr.KindProfile, 100, `{"name":"alice","about":"first"}`)
	v2 := s.Event(t, nostr.KindProfile, 200, `{"name":"Alicia","display_name":"Ali","nip05":"a@example.com"}`)
	stale := s.Event(t, nostr.KindProfile, 150, `{"name":"old"}`)
	ingest(t, n, v1, v2, stale)

	txn := begin(t, n)
	rec, err := n.GetProfileByPubkey(txn, s.PubKey())
	require.NoError(t, err)
	require.NotNil(t, rec.Profile)
	assert.EqualValues(t, 200, rec.CreatedAt)
	assert.Equal(t, "Alicia", *rec.Profile.Name)
	assert.Equal(t, "a@example.com", *rec.Profile.Nip05)
	assert.Nil(t, rec.Profile.About)

	_, key, err := n.GetNoteByID(txn, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, key, rec.NoteKey)

	_, err = n.GetProfileByPubkey(txn, testutil.NewSigner(21).PubKey())
	require.ErrorIs(t, err, ndb.ErrNotFound)
}

func TestProfile_UnparsableContent(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(22)
	ingest(t, n, s.Event(t, nostr.KindProfile, 1, "not json"))

	txn := begin(t, n)
	rec, err := n.GetProfileByPubkey(txn, s.PubKey())
	require.NoError(t, err)
	assert.Nil(t, rec.Profile)
}

func TestSearchProfile(t *testing.T) {
	n := openMock(t)
	alice := testutil.NewSigner(23)
	alfred := testutil.NewSigner(24)
	bob := testutil.NewSigner(25)

	ingest(t, n,
		alice.Event(t, nostr.KindProfile, 1, `{"name":"alice","display_name":"Alice Wonder"}`),
		alfred.Event(t, nostr.KindProfile, 1, `{"name":"Alfred"}`),
		bob.Event(t, nostr.KindProfile, 1, `{"name":"bob","display_name":"alpha bob"}`),
	)

	txn := begin(t, n)
	got, err := n.SearchProfile(txn, "AL", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][32]byte{alice.PubKey(), alfred.PubKey(), bob.PubKey()}, got)

	got, err = n.SearchProfile(txn, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, [][32]byte{alice.PubKey()}, got, "name and display name match once")

	got, err = n.SearchProfile(txn, "al", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = n.SearchProfile(txn, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchProfile_RenameDropsOldName(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(26)
	ingest(t, n,
		s.Event(t, nostr.KindProfile, 1, `{"name":"satoshi"}`),
		s.Event(t, nostr.KindProfile, 2, `{"name":"hal"}`),
	)

	txn := begin(t, n)
	got, err := n.SearchProfile(txn, "sat", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = n.SearchProfile(txn, "hal", 10)
	require.NoError(t, err)
	assert.Equal(t, [][32]byte{s.PubKey()}, got)
}
