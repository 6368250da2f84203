package boundary_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/boundary"
	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/internal/testutil"
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

func mockOpener(_ string, opts ...ndb.Option) (*ndb.Ndb, error) {
	return ndb.OpenStore(db.NewMockStore(ndb.ColumnFamilies()...), opts...)
}

func newBridge(t *testing.T, opts ...boundary.Option) *boundary.Bridge {
	t.Helper()
	base := []boundary.Option{
		boundary.WithLogger(logger.NewNop()),
		boundary.WithEngineOptions(ndb.WithLogger(logger.NewNop())),
		boundary.WithOpener(mockOpener),
	}
	return boundary.New(append(base, opts...)...)
}

func openDB(t *testing.T, b *boundary.Bridge, env *boundary.LocalEnv) int64 {
	t.Helper()
	h := b.Open(env, []byte("mem"))
	require.Nil(t, env.TakeError())
	require.NotZero(t, h)
	t.Cleanup(func() { b.Close(h) })
	return h
}

func beginTxn(t *testing.T, b *boundary.Bridge, env *boundary.LocalEnv, dbh int64) int64 {
	t.Helper()
	h := b.BeginTransaction(env, dbh)
	require.Nil(t, env.TakeError())
	require.NotZero(t, h)
	t.Cleanup(func() { b.EndTransaction(h) })
	return h
}

func requireRaised(t *testing.T, env *boundary.LocalEnv, kind boundary.Kind) *boundary.Error {
	t.Helper()
	e := env.TakeError()
	require.NotNil(t, e, "expected %s to be raised", kind)
	require.Equal(t, kind, e.Kind, "raised: %v", e)
	return e
}

func ingestOne(t *testing.T, b *boundary.Bridge, env *boundary.LocalEnv, dbh int64, ev *nostr.Event) {
	t.Helper()
	require.EqualValues(t, 1, b.ProcessEvent(env, dbh, []byte(testutil.JSON(t, ev))))
	require.Nil(t, env.TakeError())
}

func TestRoundTrip_IngestThenGetByID(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)

	ev := testutil.NewSigner(1).Event(t, nostr.KindTextNote, 1700000000, "round \"trip\"\n",
		[]string{"e", strings.Repeat("ef", 32), "wss://relay.example"},
		[]string{"t", "go"},
	)
	ingestOne(t, b, env, dbh, ev)

	txnh := beginTxn(t, b, env, dbh)
	doc := b.GetNoteByID(env, dbh, txnh, ev.ID[:])
	require.Nil(t, env.TakeError())
	require.NotNil(t, doc)

	got, err := wire.DecodeNote(doc)
	require.NoError(t, err)
	if diff := cmp.Diff(ev, got); diff != "" {
		t.Fatalf("note mismatch (-want +got):\n%s", diff)
	}
}

func TestGetByID_NotFoundRaisesNothing(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	txnh := beginTxn(t, b, env, dbh)

	assert.Nil(t, b.GetNoteByID(env, dbh, txnh, make([]byte, 32)))
	assert.Nil(t, b.GetNoteByKey(env, dbh, txnh, 99))
	assert.Nil(t, b.GetProfile(env, dbh, txnh, make([]byte, 32)))
	assert.Empty(t, env.Raised())
}

func TestGetByKey(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	ev := testutil.NewSigner(2).Event(t, nostr.KindTextNote, 5, "by key")
	ingestOne(t, b, env, dbh, ev)

	txnh := beginTxn(t, b, env, dbh)
	doc := b.GetNoteByKey(env, dbh, txnh, 1)
	require.NotNil(t, doc)
	got, err := wire.DecodeNote(doc)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
}

func TestFixedSizeInputs_InvalidLength(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	txnh := beginTxn(t, b, env, dbh)

	for _, n := range []int{0, 1, 31, 33, 64} {
		in := make([]byte, n)
		assert.Nil(t, b.GetNoteByID(env, dbh, txnh, in))
		e := requireRaised(t, env, boundary.InvalidLength)
		assert.Contains(t, e.Error(), "expected 32 bytes")
		assert.Equal(t, boundary.CategoryIllegalArgument, e.Category())

		assert.Nil(t, b.GetProfile(env, dbh, txnh, in))
		requireRaised(t, env, boundary.InvalidLength)
	}
}

func TestZeroHandles_NullHandle(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	txnh := beginTxn(t, b, env, dbh)
	id := make([]byte, 32)

	cases := []struct {
		name string
		role string
		call func() bool // reports whether the absent value came back
	}{
		{"process event", "database", func() bool { return b.ProcessEvent(env, 0, []byte("{}")) == 0 }},
		{"process events", "database", func() bool { return b.ProcessEvents(env, 0, []byte("{}")) == -1 }},
		{"clone", "database", func() bool { return b.CloneDB(env, 0) == 0 }},
		{"begin", "database", func() bool { return b.BeginTransaction(env, 0) == 0 }},
		{"get by id db", "database", func() bool { return b.GetNoteByID(env, 0, txnh, id) == nil }},
		{"get by id txn", "transaction", func() bool { return b.GetNoteByID(env, dbh, 0, id) == nil }},
		{"get by key txn", "transaction", func() bool { return b.GetNoteByKey(env, dbh, 0, 1) == nil }},
		{"query filter", "filter", func() bool { return b.Query(env, dbh, txnh, 0, 10) == nil }},
		{"profile txn", "transaction", func() bool { return b.GetProfile(env, dbh, 0, id) == nil }},
		{"search txn", "transaction", func() bool { return b.SearchProfiles(env, dbh, 0, []byte("a"), 1) == nil }},
		{"kinds", "filter builder", func() bool { return b.FilterKinds(env, 0, []byte{1, 0, 0, 0}) == 0 }},
		{"authors", "filter builder", func() bool { return b.FilterAuthors(env, 0, id) == 0 }},
		{"tag", "filter builder", func() bool { return b.FilterTag(env, 0, []byte("t"), nil) == 0 }},
		{"since", "filter builder", func() bool { return b.FilterSince(env, 0, 1) == 0 }},
		{"until", "filter builder", func() bool { return b.FilterUntil(env, 0, 1) == 0 }},
		{"limit", "filter builder", func() bool { return b.FilterLimit(env, 0, 1) == 0 }},
		{"search", "filter builder", func() bool { return b.FilterSearch(env, 0, []byte("x")) == 0 }},
		{"build", "filter builder", func() bool { return b.FilterBuild(env, 0) == 0 }},
		{"subscribe db", "database", func() bool { return b.Subscribe(env, 0, 1) == 0 }},
		{"subscribe filter", "filter", func() bool { return b.Subscribe(env, dbh, 0) == 0 }},
		{"poll", "database", func() bool { return b.PollForNotes(env, 0, 1, 1) == nil }},
		{"unsubscribe", "database", func() bool { b.Unsubscribe(env, 0, 1); return true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.call(), "absent value")
			e := requireRaised(t, env, boundary.NullHandle)
			assert.Contains(t, e.Error(), tc.role+" handle is null")
			assert.Equal(t, boundary.CategoryNullReference, e.Category())
		})
	}
}

func TestCleanup_ZeroAndReleasedHandlesAreNoops(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()

	assert.NotPanics(t, func() {
		b.Close(0)
		b.EndTransaction(0)
		b.FilterDestroy(0)
	})

	dbh := b.Open(env, []byte("mem"))
	txnh := b.BeginTransaction(env, dbh)
	fh := b.FilterBuild(env, b.FilterNew(env))
	require.Empty(t, env.Raised())

	assert.NotPanics(t, func() {
		for range 2 {
			b.FilterDestroy(fh)
			b.EndTransaction(txnh)
			b.Close(dbh)
		}
	})
	assert.Empty(t, env.Raised())
	assert.Equal(t, boundary.HandleCounts{}, b.Live())
}

func TestProcessEvents_BestEffortCount(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	s := testutil.NewSigner(3)

	batch := testutil.JSON(t, s.Event(t, nostr.KindTextNote, 1, "first")) + "\n\n" +
		`{"id":"nope"}` + "\n" +
		testutil.JSON(t, s.Event(t, nostr.KindTextNote, 2, "second"))

	assert.EqualValues(t, 2, b.ProcessEvents(env, dbh, []byte(batch)))
	assert.Empty(t, env.Raised())

	assert.EqualValues(t, 0, b.ProcessEvents(env, dbh, []byte("\xff\xfe\n")))
	assert.Empty(t, env.Raised())
}

func TestProcessEvent_Failures(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)

	assert.Zero(t, b.ProcessEvent(env, dbh, []byte(`{"kind":1}`)))
	e := requireRaised(t, env, boundary.EngineOther)
	assert.ErrorIs(t, e, ndb.ErrInvalidEvent)
	assert.Equal(t, boundary.CategoryLibrary, e.Category())

	assert.Zero(t, b.ProcessEvent(env, dbh, []byte{'{', 0xc3, 0x28, '}'}))
	requireRaised(t, env, boundary.InvalidEncoding)
}

func TestQuery_KeyListEncoding(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	s := testutil.NewSigner(4)

	// Note keys are assigned 1, 2, ...; mark keys 7 and 42 and make the
	// lower key the newer one so results come back as [7, 42].
	for i := 1; i <= 42; i++ {
		var tags [][]string
		if i == 7 || i == 42 {
			tags = append(tags, []string{"t", "pick"})
		}
		ingestOne(t, b, env, dbh, s.Event(t, nostr.KindTextNote, uint64(1000-i), "n", tags...))
	}

	fh := b.FilterTag(env, b.FilterNew(env), []byte("t"), [][]byte{[]byte("pick")})
	fh = b.FilterBuild(env, fh)
	require.NotZero(t, fh)
	defer b.FilterDestroy(fh)

	txnh := beginTxn(t, b, env, dbh)
	got := b.Query(env, dbh, txnh, fh, 100)
	require.Nil(t, env.TakeError())
	want := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x2A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, want, got)
}

func TestQuery_FilterChain(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	alice, bob := testutil.NewSigner(5), testutil.NewSigner(6)

	ingestOne(t, b, env, dbh, alice.Event(t, nostr.KindTextNote, 10, "hello world"))
	ingestOne(t, b, env, dbh, alice.Event(t, nostr.KindReaction, 20, "+"))
	ingestOne(t, b, env, dbh, bob.Event(t, nostr.KindTextNote, 30, "hello bob"))
	ingestOne(t, b, env, dbh, alice.Event(t, nostr.KindTextNote, 40, "goodbye"))

	pk := alice.PubKey()
	h := b.FilterNew(env)
	h = b.FilterKinds(env, h, []byte{1, 0, 0, 0, 0xff, 0xff}) // partial trailing kind ignored
	h = b.FilterAuthors(env, h, pk[:])
	h = b.FilterSince(env, h, 5)
	h = b.FilterUntil(env, h, 35)
	h = b.FilterSearch(env, h, []byte("hello"))
	h = b.FilterLimit(env, h, 10)
	fh := b.FilterBuild(env, h)
	require.Empty(t, env.Raised())
	require.NotZero(t, fh)
	defer b.FilterDestroy(fh)

	txnh := beginTxn(t, b, env, dbh)
	keys, err := wire.DecodeKeys(b.Query(env, dbh, txnh, fh, 100))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, keys)
}

func TestBuilder_TransitionConsumesHandle(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()

	h0 := b.FilterNew(env)
	h1 := b.FilterKinds(env, h0, []byte{1, 0, 0, 0})
	require.NotZero(t, h1)
	assert.NotEqual(t, h0, h1)

	// A second transition on the consumed handle is detected.
	assert.Zero(t, b.FilterKinds(env, h0, []byte{7, 0, 0, 0}))
	requireRaised(t, env, boundary.InvalidState)
	assert.Zero(t, b.FilterBuild(env, h0))
	requireRaised(t, env, boundary.InvalidState)

	fh := b.FilterBuild(env, h1)
	require.NotZero(t, fh)
	require.Nil(t, env.TakeError())
	assert.Equal(t, boundary.HandleCounts{Filters: 1}, b.Live())

	assert.Zero(t, b.FilterSince(env, h1, 1), "build consumed the builder")
	requireRaised(t, env, boundary.InvalidState)

	b.FilterDestroy(fh)
	assert.Equal(t, boundary.HandleCounts{}, b.Live())
}

func TestBuilder_FailedTransitionKeepsHandle(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	h := b.FilterNew(env)

	assert.Zero(t, b.FilterTag(env, h, []byte(""), [][]byte{[]byte("x")}))
	e := requireRaised(t, env, boundary.FilterBuildFailure)
	assert.Contains(t, e.Error(), "tag name")

	assert.Zero(t, b.FilterTag(env, h, []byte{0xff}, nil))
	requireRaised(t, env, boundary.InvalidEncoding)
	assert.Zero(t, b.FilterTag(env, h, []byte("p"), [][]byte{[]byte("ok"), {0xc0}}))
	requireRaised(t, env, boundary.InvalidEncoding)
	assert.Zero(t, b.FilterSearch(env, h, []byte{0xed, 0xa0, 0x80}))
	requireRaised(t, env, boundary.InvalidEncoding)

	assert.Zero(t, b.FilterSince(env, h, -1))
	requireRaised(t, env, boundary.FilterBuildFailure)
	assert.Zero(t, b.FilterLimit(env, h, 0))
	requireRaised(t, env, boundary.FilterBuildFailure)

	assert.Equal(t, 1, b.Live().Builders)
	h2 := b.FilterTag(env, h, []byte("pubkey"), [][]byte{[]byte("abc")})
	require.NotZero(t, h2)
	require.Nil(t, env.TakeError())

	b.FilterDestroy(h2)
	assert.Equal(t, boundary.HandleCounts{}, b.Live())
}

func TestUnsubscribe_ExclusiveOwnership(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)

	fh := b.FilterBuild(env, b.FilterKinds(env, b.FilterNew(env), []byte{1, 0, 0, 0}))
	require.NotZero(t, fh)
	defer b.FilterDestroy(fh)
	sub := b.Subscribe(env, dbh, fh)
	require.NotZero(t, sub)
	require.Nil(t, env.TakeError())

	ingestOne(t, b, env, dbh, testutil.NewSigner(7).Event(t, nostr.KindTextNote, 1, "hi"))
	keys, err := wire.DecodeKeys(b.PollForNotes(env, dbh, sub, 10))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, keys)

	alias := b.CloneDB(env, dbh)
	require.NotZero(t, alias)
	b.Unsubscribe(env, dbh, sub)
	e := requireRaised(t, env, boundary.InvalidState)
	assert.Equal(t, boundary.CategoryIllegalState, e.Category())
	b.Close(alias)

	// An open transaction is not an alias of the database handle.
	txnh := beginTxn(t, b, env, dbh)
	b.Unsubscribe(env, dbh, sub)
	assert.Nil(t, env.TakeError())

	assert.NotNil(t, b.GetNoteByKey(env, dbh, txnh, 1))
	assert.Nil(t, env.TakeError())

	assert.Nil(t, b.PollForNotes(env, dbh, sub, 10))
	requireRaised(t, env, boundary.EngineNotFound)
}

func TestTransaction_PinsEngineWithoutAliasing(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()

	dbh := b.Open(env, []byte("mem"))
	ingestOne(t, b, env, dbh, testutil.NewSigner(13).Event(t, nostr.KindTextNote, 1, "pinned"))
	fh := b.FilterBuild(env, b.FilterNew(env))
	defer b.FilterDestroy(fh)
	sub := b.Subscribe(env, dbh, fh)
	txnh := b.BeginTransaction(env, dbh)
	require.Empty(t, env.Raised())

	b.Unsubscribe(env, dbh, sub)
	assert.Nil(t, env.TakeError())

	b.Close(dbh)
	assert.Equal(t, boundary.HandleCounts{Transactions: 1, Filters: 1}, b.Live())

	b.EndTransaction(txnh)
	assert.Equal(t, boundary.HandleCounts{Filters: 1}, b.Live())
	assert.Empty(t, env.Raised())
}

func TestCloneDB_EngineLivesUntilLastReference(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()

	dbh := b.Open(env, []byte("mem"))
	alias := b.CloneDB(env, dbh)
	require.NotZero(t, alias)
	assert.NotEqual(t, dbh, alias)

	ev := testutil.NewSigner(8).Event(t, nostr.KindTextNote, 1, "shared")
	ingestOne(t, b, env, dbh, ev)
	b.Close(dbh)

	txnh := b.BeginTransaction(env, alias)
	require.NotZero(t, txnh)
	b.Close(alias)
	assert.Equal(t, boundary.HandleCounts{Transactions: 1}, b.Live())

	b.EndTransaction(txnh)
	assert.Equal(t, boundary.HandleCounts{}, b.Live())
	assert.Empty(t, env.Raised())

	assert.Zero(t, b.BeginTransaction(env, alias))
	requireRaised(t, env, boundary.InvalidState)
}

func TestHandles_WrongKindAndForeignTxn(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	db1 := openDB(t, b, env)
	db2 := openDB(t, b, env)
	txn2 := beginTxn(t, b, env, db2)

	assert.Nil(t, b.GetNoteByKey(env, db1, txn2, 1))
	e := requireRaised(t, env, boundary.InvalidState)
	assert.Contains(t, e.Error(), "another database")

	assert.Zero(t, b.BeginTransaction(env, txn2))
	requireRaised(t, env, boundary.InvalidState)

	fh := b.FilterBuild(env, b.FilterNew(env))
	defer b.FilterDestroy(fh)
	assert.Zero(t, b.FilterSince(env, fh, 1))
	requireRaised(t, env, boundary.InvalidState)
}

func TestProfiles(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	alice, bob := testutil.NewSigner(9), testutil.NewSigner(10)

	ingestOne(t, b, env, dbh, alice.Event(t, nostr.KindProfile, 1, `{"name":"alice","lud16":"alice@ln.example"}`))
	ingestOne(t, b, env, dbh, bob.Event(t, nostr.KindProfile, 1, `not a profile`))

	txnh := beginTxn(t, b, env, dbh)
	apk, bpk := alice.PubKey(), bob.PubKey()

	p, err := wire.DecodeProfile(b.GetProfile(env, dbh, txnh, apk[:]))
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "alice", *p.Name)
	assert.Equal(t, "alice@ln.example", *p.Lud16)
	assert.Nil(t, p.Website)

	assert.Equal(t, "{}", string(b.GetProfile(env, dbh, txnh, bpk[:])))

	pks, err := wire.DecodePubkeys(b.SearchProfiles(env, dbh, txnh, []byte("Ali"), 10))
	require.NoError(t, err)
	assert.Equal(t, [][32]byte{apk}, pks)

	assert.Equal(t, []byte{0, 0, 0, 0}, b.SearchProfiles(env, dbh, txnh, []byte("zed"), 10))
	assert.Nil(t, b.SearchProfiles(env, dbh, txnh, []byte{0xff}, 10))
	requireRaised(t, env, boundary.InvalidEncoding)
}

func TestHostAllocationFailure(t *testing.T) {
	b := newBridge(t)
	env := boundary.NewLocalEnv()
	dbh := openDB(t, b, env)
	ev := testutil.NewSigner(11).Event(t, nostr.KindTextNote, 1, "too big for the host")
	ingestOne(t, b, env, dbh, ev)
	txnh := beginTxn(t, b, env, dbh)

	env.MaxArrayLen = 8
	assert.Nil(t, b.GetNoteByID(env, dbh, txnh, ev.ID[:]))
	e := requireRaised(t, env, boundary.BoundaryFailure)
	assert.ErrorIs(t, e, boundary.ErrAllocation)
	assert.Equal(t, boundary.CategoryRuntime, e.Category())
}

type panickyEnv struct{ *boundary.LocalEnv }

func (panickyEnv) NewByteArray([]byte) ([]byte, error) { panic("host array exploded") }

func TestPanicsAreContained(t *testing.T) {
	b := newBridge(t, boundary.WithOpener(func(string, ...ndb.Option) (*ndb.Ndb, error) {
		panic("engine exploded")
	}))
	env := boundary.NewLocalEnv()

	var h int64
	require.NotPanics(t, func() { h = b.Open(env, []byte("x")) })
	assert.Zero(t, h)
	e := requireRaised(t, env, boundary.NativePanic)
	assert.Contains(t, e.Error(), "engine exploded")
	assert.Contains(t, e.Error(), "before closing the database")
	assert.Equal(t, boundary.CategoryRuntime, e.Category())

	b2 := newBridge(t)
	local := boundary.NewLocalEnv()
	dbh := openDB(t, b2, local)
	txnh := beginTxn(t, b2, local, dbh)
	penv := panickyEnv{local}

	var out []byte
	require.NotPanics(t, func() { out = b2.SearchProfiles(penv, dbh, txnh, []byte("a"), 1) })
	assert.Nil(t, out)
	requireRaised(t, local, boundary.NativePanic)
}

func TestOpen_Failures(t *testing.T) {
	b := boundary.New(
		boundary.WithLogger(logger.NewNop()),
		boundary.WithEngineOptions(ndb.WithLogger(logger.NewNop())),
	)
	env := boundary.NewLocalEnv()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.Zero(t, b.Open(env, []byte(file)))
	e := requireRaised(t, env, boundary.EngineOpenFailed)
	assert.Equal(t, boundary.CategoryIO, e.Category())

	assert.Zero(t, b.Open(env, []byte{0xff}))
	requireRaised(t, env, boundary.InvalidEncoding)
}

func TestPebbleEndToEnd(t *testing.T) {
	b := boundary.New(
		boundary.WithLogger(logger.NewNop()),
		boundary.WithEngineOptions(ndb.WithLogger(logger.NewNop())),
	)
	env := boundary.NewLocalEnv()
	dir := []byte(t.TempDir())
	ev := testutil.NewSigner(12).Event(t, nostr.KindTextNote, 42, "persist me")

	dbh := b.Open(env, dir)
	require.NotZero(t, dbh)
	ingestOne(t, b, env, dbh, ev)
	b.Close(dbh)

	dbh = b.Open(env, dir)
	require.NotZero(t, dbh)
	defer b.Close(dbh)
	txnh := b.BeginTransaction(env, dbh)
	defer b.EndTransaction(txnh)

	got, err := wire.DecodeNote(b.GetNoteByID(env, dbh, txnh, ev.ID[:]))
	require.NoError(t, err)
	assert.Equal(t, ev.Content, got.Content)
	assert.Empty(t, env.Raised())
}
