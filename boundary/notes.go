package boundary

import (
	"errors"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

// GetNoteByID returns the note document for a 32-byte event id, or nil
// without raising when no such note exists.
func (b *Bridge) GetNoteByID(env Env, dbh, txnh int64, id []byte) []byte {
	return call(b, env, "get note by id", nil, func() ([]byte, error) {
		c, t, err := b.session(dbh, txnh)
		if err != nil {
			return nil, err
		}
		eid, err := decode32("event id", id)
		if err != nil {
			return nil, err
		}
		ev, _, err := c.engine.GetNoteByID(t.txn, eid)
		return noteResult(env, ev, err)
	})
}

// GetNoteByKey returns the note document stored under key, or nil
// without raising when no such note exists.
func (b *Bridge) GetNoteByKey(env Env, dbh, txnh int64, key uint64) []byte {
	return call(b, env, "get note by key", nil, func() ([]byte, error) {
		c, t, err := b.session(dbh, txnh)
		if err != nil {
			return nil, err
		}
		ev, err := c.engine.GetNoteByKey(t.txn, key)
		return noteResult(env, ev, err)
	})
}

func noteResult(env Env, ev *nostr.Event, err error) ([]byte, error) {
	if errors.Is(err, ndb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := wire.EncodeNote(ev)
	if err != nil {
		return nil, wrapError(SerializationFailure, err, "encode note")
	}
	return toHost(env, doc)
}

// Query runs a filter inside a transaction and returns a key list, newest
// note first.
func (b *Bridge) Query(env Env, dbh, txnh, filterh int64, limit int32) []byte {
	return call(b, env, "query", nil, func() ([]byte, error) {
		c, t, err := b.session(dbh, txnh)
		if err != nil {
			return nil, err
		}
		f, err := b.filter(filterh)
		if err != nil {
			return nil, err
		}
		res, err := c.engine.Query(t.txn, []ndb.Filter{f}, int(limit))
		if err != nil {
			return nil, err
		}
		keys := make([]uint64, len(res))
		for i, r := range res {
			keys[i] = r.NoteKey
		}
		return toHost(env, wire.EncodeKeys(keys))
	})
}
