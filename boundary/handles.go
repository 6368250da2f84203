package boundary

import (
	"sync"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
)

const (
	tagDatabase handle.Tag = iota + 1
	tagTxn
	tagBuilder
	tagFilter
)

// conn is the shared engine connection behind one or more database
// handles. Handles count toward exclusive use; live transactions only pin
// the engine open. The engine closes once both counts reach zero.
type conn struct {
	engine *ndb.Ndb
	path   string

	mu      sync.Mutex
	handles int
	pins    int
	closed  bool
}

func newConn(engine *ndb.Ndb, path string) *conn {
	return &conn{engine: engine, path: path, handles: 1}
}

// acquire adds a database handle reference unless the engine is closed.
func (c *conn) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.handles++
	return true
}

// pin keeps the engine open for a transaction.
func (c *conn) pin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pins++
	return true
}

func (c *conn) release() error { return c.drop(&c.handles) }

func (c *conn) unpin() error { return c.drop(&c.pins) }

func (c *conn) drop(n *int) error {
	c.mu.Lock()
	*n--
	last := c.handles == 0 && c.pins == 0 && !c.closed
	if last {
		c.closed = true
	}
	c.mu.Unlock()
	if !last {
		return nil
	}
	return c.engine.Close()
}

// handleCount returns the number of live database handles.
func (c *conn) handleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles
}

type txnRef struct {
	conn *conn
	txn  *ndb.Txn
}

// database resolves a database handle.
func (b *Bridge) database(h int64) (*conn, error) {
	if err := requireHandle(roleDatabase, h); err != nil {
		return nil, err
	}
	c, err := b.dbs.Get(handle.Handle(h))
	if err != nil {
		return nil, wrapError(InvalidState, err, "database handle %#x", h)
	}
	return c, nil
}

// transaction resolves a transaction handle and checks it belongs to c.
func (b *Bridge) transaction(c *conn, h int64) (*txnRef, error) {
	if err := requireHandle(roleTxn, h); err != nil {
		return nil, err
	}
	t, err := b.txns.Get(handle.Handle(h))
	if err != nil {
		return nil, wrapError(InvalidState, err, "transaction handle %#x", h)
	}
	if t.conn != c {
		return nil, newError(InvalidState, "transaction %#x belongs to another database", h)
	}
	return t, nil
}

// session resolves the database and transaction pair of a read call.
func (b *Bridge) session(dbh, txnh int64) (*conn, *txnRef, error) {
	c, err := b.database(dbh)
	if err != nil {
		return nil, nil, err
	}
	t, err := b.transaction(c, txnh)
	if err != nil {
		return nil, nil, err
	}
	return c, t, nil
}

func (b *Bridge) builder(h int64) (ndb.FilterBuilder, error) {
	if err := requireHandle(roleBuilder, h); err != nil {
		return ndb.FilterBuilder{}, err
	}
	fb, err := b.builders.Get(handle.Handle(h))
	if err != nil {
		return ndb.FilterBuilder{}, wrapError(InvalidState, err, "filter builder handle %#x", h)
	}
	return fb, nil
}

func (b *Bridge) filter(h int64) (ndb.Filter, error) {
	if err := requireHandle(roleFilter, h); err != nil {
		return ndb.Filter{}, err
	}
	f, err := b.filters.Get(handle.Handle(h))
	if err != nil {
		return ndb.Filter{}, wrapError(InvalidState, err, "filter handle %#x", h)
	}
	return f, nil
}
