package boundary

import (
	"errors"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

// GetProfile returns the profile document of a 32-byte pubkey, or nil
// without raising when the pubkey has no profile.
func (b *Bridge) GetProfile(env Env, dbh, txnh int64, pubkey []byte) []byte {
	return call(b, env, "get profile", nil, func() ([]byte, error) {
		c, t, err := b.session(dbh, txnh)
		if err != nil {
			return nil, err
		}
		pk, err := decode32("pubkey", pubkey)
		if err != nil {
			return nil, err
		}
		rec, err := c.engine.GetProfileByPubkey(t.txn, pk)
		if errors.Is(err, ndb.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		doc, err := wire.EncodeProfile(rec.Profile)
		if err != nil {
			return nil, wrapError(SerializationFailure, err, "encode profile")
		}
		return toHost(env, doc)
	})
}

// SearchProfiles returns a pubkey list of profiles whose name starts with
// query.
func (b *Bridge) SearchProfiles(env Env, dbh, txnh int64, query []byte, limit int32) []byte {
	return call(b, env, "search profiles", nil, func() ([]byte, error) {
		c, t, err := b.session(dbh, txnh)
		if err != nil {
			return nil, err
		}
		q, err := decodeText("query", query)
		if err != nil {
			return nil, err
		}
		pks, err := c.engine.SearchProfile(t.txn, q, int(limit))
		if err != nil {
			return nil, err
		}
		return toHost(env, wire.EncodePubkeys(pks))
	})
}
