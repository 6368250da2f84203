package boundary

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
)

func TestKindCategory(t *testing.T) {
	want := map[Kind]Category{
		BoundaryFailure:      CategoryRuntime,
		EngineNotFound:       CategoryNotFound,
		EngineOpenFailed:     CategoryIO,
		EngineOther:          CategoryLibrary,
		InvalidLength:        CategoryIllegalArgument,
		NullHandle:           CategoryNullReference,
		InvalidEncoding:      CategoryIllegalArgument,
		SerializationFailure: CategoryLibrary,
		FilterBuildFailure:   CategoryLibrary,
		InvalidState:         CategoryIllegalState,
		NativePanic:          CategoryRuntime,
	}
	for k, c := range want {
		assert.Equal(t, c, k.Category(), k.String())
	}
	assert.Equal(t, "null-reference", CategoryNullReference.String())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&ndb.OpenError{Path: "/x", Err: errors.New("locked")}, EngineOpenFailed},
		{fmt.Errorf("get: %w", ndb.ErrNotFound), EngineNotFound},
		{ndb.ErrSubscriptionNotFound, EngineNotFound},
		{fmt.Errorf("%w: bad", ndb.ErrInvalidFilter), FilterBuildFailure},
		{handle.ErrNull, NullHandle},
		{handle.ErrStale, InvalidState},
		{handle.ErrWrongTag, InvalidState},
		{ndb.ErrTxnEnded, InvalidState},
		{ndb.ErrForeignTxn, InvalidState},
		{ndb.ErrClosed, EngineOther},
		{errors.New("disk on fire"), EngineOther},
		{newError(InvalidLength, "expected 32 bytes, got 3"), InvalidLength},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		assert.Equal(t, tc.want, got.Kind, "%v", tc.err)
		assert.ErrorIs(t, got, tc.err)
	}
}

func TestMarshalHelpers(t *testing.T) {
	ks, rest := chunkKinds([]byte{1, 0, 0, 0, 0x10, 0x27, 0, 0, 9})
	assert.Equal(t, []uint32{1, 10000}, ks)
	assert.Equal(t, 1, rest)

	pks, rest := chunkPubkeys(make([]byte, 70))
	assert.Len(t, pks, 2)
	assert.Equal(t, 6, rest)

	_, err := decode32("event id", make([]byte, 31))
	assert.EqualError(t, err, "event id: expected 32 bytes, got 31")

	s, err := decodeText("path", nil)
	assert.NoError(t, err)
	assert.Empty(t, s)
}
