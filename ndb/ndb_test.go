package ndb_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/internal/testutil"
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

func openMock(t *testing.T, opts ...ndb.Option) *ndb.Ndb {
	t.Helper()

	opts = append([]ndb.Option{ndb.WithLogger(logger.NewNop())}, opts...)
	n, err := ndb.OpenStore(db.NewMockStore(ndb.ColumnFamilies()...), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func ingest(t *testing.T, n *ndb.Ndb, evs ...*nostr.Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, n.ProcessEvent(testutil.JSON(t, ev)))
	}
}

func begin(t *testing.T, n *ndb.Ndb) *ndb.Txn {
	t.Helper()
	txn, err := n.BeginTxn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = txn.End() })
	return txn
}

func TestProcessEvent_GetByID(t *testing.T) {
	n := openMock(t)
	ev := testutil.NewSigner(1).Event(t, nostr.KindTextNote, 1700000000, "hello nostr",
		[]string{"t", "intro"}, []string{"p", strings.Repeat("01", 32)})
	ingest(t, n, ev)

	txn := begin(t, n)
	got, key, err := n.GetNoteByID(txn, ev.ID)
	require.NoError(t, err)
	assert.NotZero(t, key)
	if diff := cmp.Diff(ev, got); diff != "" {
		t.Fatalf("note mismatch (-want +got):\n%s", diff)
	}

	byKey, err := n.GetNoteByKey(txn, key)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, byKey.ID)

	_, _, err = n.GetNoteByID(txn, [32]byte{1})
	require.ErrorIs(t, err, ndb.ErrNotFound)
	_, err = n.GetNoteByKey(txn, key+100)
	require.ErrorIs(t, err, ndb.ErrNotFound)
}

func TestProcessEvent_RelayMessageForms(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(2)
	a := s.Event(t, nostr.KindTextNote, 1, "a")
	b := s.Event(t, nostr.KindTextNote, 2, "b")

	require.NoError(t, n.ProcessEvent(`["EVENT",`+testutil.JSON(t, a)+`]`))
	require.NoError(t, n.ProcessEvent(`["EVENT","sub1",`+testutil.JSON(t, b)+`]`))
	require.ErrorIs(t, n.ProcessEvent(`["NOTICE","hi"]`), ndb.ErrInvalidEvent)
	require.ErrorIs(t, n.ProcessEvent(`not json`), ndb.ErrInvalidEvent)

	txn := begin(t, n)
	for _, ev := range []*nostr.Event{a, b} {
		_, _, err := n.GetNoteByID(txn, ev.ID)
		require.NoError(t, err)
	}
}

func TestProcessEvent_Verification(t *testing.T) {
	ev := testutil.NewSigner(3).Event(t, nostr.KindTextNote, 1, "signed")
	ev.Sig[5] ^= 0x01
	raw := testutil.JSON(t, ev)

	strict := openMock(t)
	require.ErrorIs(t, strict.ProcessEvent(raw), ndb.ErrInvalidEvent)

	lax := openMock(t, ndb.WithVerifySignatures(false))
	require.NoError(t, lax.ProcessEvent(raw))
}

func TestProcessEvent_DuplicateIsNoop(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(1)
	ev := s.Event(t, nostr.KindTextNote, 10, "once")
	ingest(t, n, ev, ev)
	ingest(t, n, s.Event(t, nostr.KindTextNote, 11, "twice"))

	txn := begin(t, n)
	res, err := n.Query(txn, []ndb.Filter{{}}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestProcessEvents_CountsAndSkips(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(5)
	lines := strings.Join([]string{
		testutil.JSON(t, s.Event(t, nostr.KindTextNote, 1, "one")),
		"",
		"{broken",
		"   ",
		"{\"content\":\"\xff\"}",
		testutil.JSON(t, s.Event(t, nostr.KindTextNote, 2, "two")),
	}, "\n")

	ok, failed, err := n.ProcessEvents(strings.NewReader(lines))
	require.NoError(t, err)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 2, failed)
}

func TestTxn_SnapshotIsolation(t *testing.T) {
	n := openMock(t)
	s := testutil.NewSigner(1)
	first := s.Event(t, nostr.KindTextNote, 1, "before")
	ingest(t, n, first)

	txn := begin(t, n)
	later := s.Event(t, nostr.KindTextNote, 2, "after")
	ingest(t, n, later)

	_, _, err := n.GetNoteByID(txn, first.ID)
	require.NoError(t, err)
	_, _, err = n.GetNoteByID(txn, later.ID)
	require.ErrorIs(t, err, ndb.ErrNotFound)

	fresh := begin(t, n)
	_, _, err = n.GetNoteByID(fresh, later.ID)
	require.NoError(t, err)
}

func TestTxn_Lifecycle(t *testing.T) {
	n := openMock(t, ndb.WithMaxReaders(2))
	other := openMock(t)

	a, err := n.BeginTxn()
	require.NoError(t, err)
	b, err := n.BeginTxn()
	require.NoError(t, err)
	_, err = n.BeginTxn()
	require.ErrorIs(t, err, ndb.ErrTooManyReaders)

	require.NoError(t, a.End())
	require.ErrorIs(t, a.End(), ndb.ErrTxnEnded)
	_, err = n.GetNoteByKey(a, 1)
	require.ErrorIs(t, err, ndb.ErrTxnEnded)

	c, err := n.BeginTxn()
	require.NoError(t, err)
	assert.Same(t, n, c.Owner())

	_, err = other.GetNoteByKey(b, 1)
	require.ErrorIs(t, err, ndb.ErrForeignTxn)

	require.NoError(t, n.Close())
	require.ErrorIs(t, b.End(), ndb.ErrTxnEnded, "close ends open transactions")
	require.ErrorIs(t, c.End(), ndb.ErrTxnEnded)
	_, err = n.BeginTxn()
	require.ErrorIs(t, err, ndb.ErrClosed)
	require.ErrorIs(t, n.Close(), ndb.ErrClosed)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := ndb.OpenStore(db.NewMockStore(ndb.ColumnFamilies()...), ndb.WithMaxReaders(0))
	require.ErrorIs(t, err, ndb.ErrInvalidConfig)

	_, err = ndb.Open(t.TempDir(), ndb.WithCompression("brotli"), ndb.WithLogger(logger.NewNop()))
	var oerr *ndb.OpenError
	require.ErrorAs(t, err, &oerr)
	require.ErrorIs(t, err, ndb.ErrInvalidConfig)
}

func TestOpen_PebbleReopenKeepsKeys(t *testing.T) {
	dir := t.TempDir()
	s := testutil.NewSigner(6)
	first := s.Event(t, nostr.KindTextNote, 1, "persisted "+strings.Repeat("x", 300))

	n, err := ndb.Open(dir, ndb.WithLogger(logger.NewNop()), ndb.WithCompression(ndb.CompressionLZ4))
	require.NoError(t, err)
	ingest(t, n, first)
	require.NoError(t, n.Close())

	n, err = ndb.Open(dir, ndb.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer n.Close()
	second := s.Event(t, nostr.KindTextNote, 2, "after reopen")
	ingest(t, n, second)

	txn, err := n.BeginTxn()
	require.NoError(t, err)
	defer txn.End()

	got, k1, err := n.GetNoteByID(txn, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Content, got.Content)
	_, k2, err := n.GetNoteByID(txn, second.ID)
	require.NoError(t, err)
	assert.Greater(t, k2, k1)
}
