package main

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/beyondbrewing/brewery-nostrdb/boundary"
	"github.com/beyondbrewing/brewery-nostrdb/config"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

// session drives one open database through the handle bridge, the same
// way a foreign host would.
type session struct {
	bridge *boundary.Bridge
	env    *boundary.LocalEnv
	db     int64
	log    logger.Logger
}

func openSession(cfg *config.Config, log logger.Logger) (*session, error) {
	s := newSession(boundary.New(
		boundary.WithLogger(log),
		boundary.WithEngineOptions(cfg.EngineOptions(log)...),
	), log)
	if err := s.open(cfg.DataDir); err != nil {
		return nil, err
	}
	return s, nil
}

func newSession(b *boundary.Bridge, log logger.Logger) *session {
	return &session{bridge: b, env: boundary.NewLocalEnv(), log: log.With("component", "cli")}
}

func (s *session) open(path string) error {
	s.db = s.bridge.Open(s.env, []byte(path))
	if err := s.check(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	s.log.Debug("session opened", "path", path)
	return nil
}

func (s *session) Close() {
	s.bridge.Close(s.db)
	if live := s.bridge.Live(); live != (boundary.HandleCounts{}) {
		s.log.Warn("handles leaked", "live", live)
	}
}

// check converts the error raised by the last bridge call, if any.
func (s *session) check() error {
	if e := s.env.TakeError(); e != nil {
		return fmt.Errorf("%s: %w", e.Category(), e)
	}
	return nil
}

// read runs fn inside a transaction.
func (s *session) read(fn func(txn int64) error) error {
	txn := s.bridge.BeginTransaction(s.env, s.db)
	if err := s.check(); err != nil {
		return err
	}
	defer s.bridge.EndTransaction(txn)
	return fn(txn)
}

func (s *session) ingest(event []byte) error {
	s.bridge.ProcessEvent(s.env, s.db, event)
	return s.check()
}

func (s *session) ingestBatch(ldjson []byte) (int, error) {
	n := s.bridge.ProcessEvents(s.env, s.db, ldjson)
	return int(n), s.check()
}

// note resolves ref as a 64-character hex id or a decimal note key. A
// missing note yields nil without error.
func (s *session) note(txn int64, ref string) ([]byte, error) {
	if len(ref) == 64 {
		id, err := nostr.Decode32(ref)
		if err != nil {
			return nil, err
		}
		doc := s.bridge.GetNoteByID(s.env, s.db, txn, id[:])
		return doc, s.check()
	}
	key, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("note %q is neither a hex id nor a note key", ref)
	}
	doc := s.bridge.GetNoteByKey(s.env, s.db, txn, key)
	return doc, s.check()
}

// buildFilter drives the builder chain for spec and returns a filter
// handle owned by the caller.
func (s *session) buildFilter(spec *nostr.FilterSpec) (int64, error) {
	b, env := s.bridge, s.env

	var steps []func(h int64) int64
	if len(spec.Kinds) > 0 {
		buf := make([]byte, 0, 4*len(spec.Kinds))
		for _, k := range spec.Kinds {
			buf = binary.LittleEndian.AppendUint32(buf, k)
		}
		steps = append(steps, func(h int64) int64 { return b.FilterKinds(env, h, buf) })
	}
	if len(spec.Authors) > 0 {
		buf := make([]byte, 0, 32*len(spec.Authors))
		for _, pk := range spec.Authors {
			buf = append(buf, pk[:]...)
		}
		steps = append(steps, func(h int64) int64 { return b.FilterAuthors(env, h, buf) })
	}
	for _, name := range spec.TagNames() {
		values := make([][]byte, len(spec.Tags[name]))
		for i, v := range spec.Tags[name] {
			values[i] = []byte(v)
		}
		steps = append(steps, func(h int64) int64 { return b.FilterTag(env, h, []byte(name), values) })
	}
	if spec.Since != nil {
		steps = append(steps, func(h int64) int64 { return b.FilterSince(env, h, *spec.Since) })
	}
	if spec.Until != nil {
		steps = append(steps, func(h int64) int64 { return b.FilterUntil(env, h, *spec.Until) })
	}
	if spec.Limit != nil {
		steps = append(steps, func(h int64) int64 { return b.FilterLimit(env, h, *spec.Limit) })
	}
	if spec.Search != "" {
		steps = append(steps, func(h int64) int64 { return b.FilterSearch(env, h, []byte(spec.Search)) })
	}

	h := b.FilterNew(env)
	if err := s.check(); err != nil {
		return 0, err
	}
	for _, step := range steps {
		next := step(h)
		if err := s.check(); err != nil {
			b.FilterDestroy(h)
			return 0, err
		}
		h = next
	}
	f := b.FilterBuild(env, h)
	if err := s.check(); err != nil {
		b.FilterDestroy(h)
		return 0, err
	}
	return f, nil
}

func (s *session) query(txn int64, spec *nostr.FilterSpec, limit int) ([]uint64, error) {
	f, err := s.buildFilter(spec)
	if err != nil {
		return nil, err
	}
	defer s.bridge.FilterDestroy(f)

	out := s.bridge.Query(s.env, s.db, txn, f, int32(min(limit, 1<<31-1)))
	if err := s.check(); err != nil {
		return nil, err
	}
	return wire.DecodeKeys(out)
}

// notes fetches the documents of keys in order, skipping keys that vanished.
func (s *session) notes(txn int64, keys []uint64) ([]wire.Note, error) {
	out := make([]wire.Note, 0, len(keys))
	for _, k := range keys {
		doc := s.bridge.GetNoteByKey(s.env, s.db, txn, k)
		if err := s.check(); err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		ev, err := wire.DecodeNote(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, wire.NoteFromEvent(ev))
	}
	return out, nil
}

func (s *session) profile(txn int64, pubkey string) ([]byte, error) {
	pk, err := nostr.Decode32(pubkey)
	if err != nil {
		return nil, err
	}
	doc := s.bridge.GetProfile(s.env, s.db, txn, pk[:])
	return doc, s.check()
}

func (s *session) searchProfiles(txn int64, q string, limit int) ([][32]byte, error) {
	out := s.bridge.SearchProfiles(s.env, s.db, txn, []byte(q), int32(min(limit, 1<<31-1)))
	if err := s.check(); err != nil {
		return nil, err
	}
	return wire.DecodePubkeys(out)
}
