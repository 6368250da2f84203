package boundary

import (
	"bytes"

	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
)

// Open opens the database at path and returns a new database handle, or
// 0 on failure.
func (b *Bridge) Open(env Env, path []byte) int64 {
	return call(b, env, "open", 0, func() (int64, error) {
		p, err := decodeText("path", path)
		if err != nil {
			return 0, err
		}
		engine, err := b.cfg.Opener(p, b.cfg.EngineOptions...)
		if err != nil {
			return 0, err
		}
		h := b.dbs.Insert(newConn(engine, p))
		b.logger.Info("database opened", "path", p, "handle", int64(h))
		return int64(h), nil
	})
}

// CloneDB returns another handle to the same open database. Each handle
// must be closed; the engine stays open while any handle or transaction
// refers to it.
func (b *Bridge) CloneDB(env Env, dbh int64) int64 {
	return call(b, env, "clone database", 0, func() (int64, error) {
		c, err := b.database(dbh)
		if err != nil {
			return 0, err
		}
		if !c.acquire() {
			return 0, newError(InvalidState, "database %#x is closing", dbh)
		}
		return int64(b.dbs.Insert(c)), nil
	})
}

// Close releases a database handle. A zero or already released handle is
// a no-op.
func (b *Bridge) Close(dbh int64) {
	if dbh == 0 {
		return
	}
	b.quiet("close", func() error {
		c, err := b.dbs.Take(handle.Handle(dbh))
		if err != nil {
			return err
		}
		if err := c.release(); err != nil {
			return err
		}
		b.logger.Debug("database handle released", "path", c.path, "handles", c.handleCount())
		return nil
	})
}

// ProcessEvent ingests one event. It returns 1 on success and 0 on
// failure.
func (b *Bridge) ProcessEvent(env Env, dbh int64, json []byte) int32 {
	return call(b, env, "process event", 0, func() (int32, error) {
		c, err := b.database(dbh)
		if err != nil {
			return 0, err
		}
		s, err := decodeText("event", json)
		if err != nil {
			return 0, err
		}
		if err := c.engine.ProcessEvent(s); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// ProcessEvents ingests newline-delimited events. Blank lines and lines
// that fail are skipped. It returns the number of lines ingested, or -1
// when the batch could not start.
func (b *Bridge) ProcessEvents(env Env, dbh int64, ldjson []byte) int32 {
	return call(b, env, "process events", -1, func() (int32, error) {
		c, err := b.database(dbh)
		if err != nil {
			return -1, err
		}
		ok, failed, err := c.engine.ProcessEvents(bytes.NewReader(ldjson))
		if err != nil {
			b.logger.Warn("batch stopped early", "ingested", ok, "failed", failed, "error", err)
		} else if failed > 0 {
			b.logger.Debug("batch lines skipped", "failed", failed)
		}
		return int32(ok), nil
	})
}

// BeginTransaction opens a read transaction on the database.
func (b *Bridge) BeginTransaction(env Env, dbh int64) int64 {
	return call(b, env, "begin transaction", 0, func() (int64, error) {
		c, err := b.database(dbh)
		if err != nil {
			return 0, err
		}
		if !c.pin() {
			return 0, newError(InvalidState, "database %#x is closing", dbh)
		}
		txn, err := c.engine.BeginTxn()
		if err != nil {
			_ = c.unpin()
			return 0, err
		}
		return int64(b.txns.Insert(&txnRef{conn: c, txn: txn})), nil
	})
}

// EndTransaction ends a transaction. A zero or already ended handle is a
// no-op.
func (b *Bridge) EndTransaction(txnh int64) {
	if txnh == 0 {
		return
	}
	b.quiet("end transaction", func() error {
		t, err := b.txns.Take(handle.Handle(txnh))
		if err != nil {
			return err
		}
		endErr := t.txn.End()
		if err := t.conn.unpin(); err != nil {
			return err
		}
		return endErr
	})
}
