package boundary

import (
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

// Subscribe registers a filter for notes ingested from now on and returns
// the subscription id, or 0 on failure. The filter handle stays owned by
// the caller.
func (b *Bridge) Subscribe(env Env, dbh, filterh int64) uint64 {
	return call(b, env, "subscribe", 0, func() (uint64, error) {
		c, err := b.database(dbh)
		if err != nil {
			return 0, err
		}
		f, err := b.filter(filterh)
		if err != nil {
			return 0, err
		}
		sub, err := c.engine.Subscribe([]ndb.Filter{f})
		if err != nil {
			return 0, err
		}
		return uint64(sub), nil
	})
}

// PollForNotes returns a key list of up to maxNotes queued notes.
func (b *Bridge) PollForNotes(env Env, dbh int64, sub uint64, maxNotes int32) []byte {
	return call(b, env, "poll for notes", nil, func() ([]byte, error) {
		c, err := b.database(dbh)
		if err != nil {
			return nil, err
		}
		keys, err := c.engine.PollForNotes(ndb.Subscription(sub), int(maxNotes))
		if err != nil {
			return nil, err
		}
		return toHost(env, wire.EncodeKeys(keys))
	})
}

// Unsubscribe cancels a subscription. It needs exclusive use of the
// database: if another database handle refers to the same connection it
// raises InvalidState instead. Open transactions do not count.
func (b *Bridge) Unsubscribe(env Env, dbh int64, sub uint64) {
	call(b, env, "unsubscribe", struct{}{}, func() (struct{}, error) {
		c, err := b.database(dbh)
		if err != nil {
			return struct{}{}, err
		}
		if n := c.handleCount(); n != 1 {
			return struct{}{}, newError(InvalidState,
				"database %#x has %d open handles; unsubscribe needs exclusive access", dbh, n)
		}
		return struct{}{}, c.engine.Unsubscribe(ndb.Subscription(sub))
	})
}
