package ndb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// maxLineBytes bounds a single line read by ProcessEvents.
const maxLineBytes = 8 << 20

// parseIngest accepts a bare event object or a relay/client message:
//
//	{...}
//	["EVENT", {...}]
//	["EVENT", "<sub id>", {...}]
func parseIngest(data []byte) (*nostr.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nostr.ParseEvent(data)
	}

	var msg []json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", nostr.ErrMalformed, err)
	}
	if len(msg) < 2 || len(msg) > 3 {
		return nil, fmt.Errorf("%w: message has %d elements", nostr.ErrMalformed, len(msg))
	}
	var label string
	if err := json.Unmarshal(msg[0], &label); err != nil || label != "EVENT" {
		return nil, fmt.Errorf("%w: not an EVENT message", nostr.ErrMalformed)
	}
	return nostr.ParseEvent(msg[len(msg)-1])
}

// ProcessEvent ingests one event in any form accepted by parseIngest.
// Ingesting an event that is already stored is a no-op.
func (n *Ndb) ProcessEvent(data string) error {
	_, err := n.ingest([]byte(data))
	return err
}

// ProcessEvents ingests newline-delimited events from r. Blank lines are
// skipped and a failing line does not stop the batch. The returned error
// is non-nil only when r fails or a line exceeds 8 MB; lines before it
// are still counted.
func (n *Ndb) ProcessEvents(r io.Reader) (ok, failed int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if _, ierr := n.ingest(line); ierr != nil {
			failed++
			n.logger.Debug("event rejected", "error", ierr)
			continue
		}
		ok++
	}
	return ok, failed, sc.Err()
}

// ingest returns the note key of the event, new or existing.
func (n *Ndb) ingest(data []byte) (uint64, error) {
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("%w: not valid UTF-8", ErrInvalidEvent)
	}
	ev, err := parseIngest(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if n.cfg.VerifySignatures {
		if err := ev.Verify(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed.Load() {
		return 0, ErrClosed
	}

	n.wmu.Lock()
	key, added, err := n.insert(ev)
	n.wmu.Unlock()
	if err != nil {
		return 0, err
	}
	if added {
		n.subs.publish(ev, key)
	}
	return key, nil
}

// insert writes the note and all of its index entries in one batch.
// Callers hold wmu.
func (n *Ndb) insert(ev *nostr.Event) (uint64, bool, error) {
	if kb, err := n.store.Get(cfIDs, ev.ID[:]); err == nil {
		if key, ok := trailingKey(kb); ok {
			return key, false, nil
		}
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return 0, false, fmt.Errorf("ndb: id lookup: %w", err)
	}

	rec, err := encodeRecord(ev, n.cfg.Compression)
	if err != nil {
		return 0, false, fmt.Errorf("ndb: encode note: %w", err)
	}

	key := n.nextKey
	kb := u64Key(key)

	st := &stager{b: n.store.NewBatch()}
	defer st.b.Close()

	st.put(cfNotes, kb, rec)
	st.put(cfIDs, ev.ID[:], kb)
	st.put(cfCreated, withSuffix(nil, ev.CreatedAt, key), nil)
	st.put(cfKinds, withSuffix(kindPrefix(ev.Kind), ev.CreatedAt, key), nil)
	st.put(cfAuthors, withSuffix(ev.PubKey[:], ev.CreatedAt, key), nil)
	for _, tag := range ev.Tags {
		if len(tag) < 2 || utf8.RuneCountInString(tag[0]) != 1 {
			continue
		}
		st.put(cfTags, withSuffix(tagPrefix(tag[0], tag[1]), ev.CreatedAt, key), nil)
	}
	if ev.Kind == nostr.KindProfile {
		if err := n.indexProfile(st, ev, key); err != nil {
			return 0, false, err
		}
	}
	for _, w := range noteWords(ev) {
		st.put(cfWords, append(wordPrefix(w), kb...), nil)
	}
	st.put(cfMeta, metaNextKey, u64Key(key+1))
	if st.err != nil {
		return 0, false, fmt.Errorf("ndb: stage note %d: %w", key, st.err)
	}

	if err := st.b.Commit(); err != nil {
		return 0, false, fmt.Errorf("ndb: commit note %d: %w", key, err)
	}
	n.nextKey++
	return key, true, nil
}

// stager collects batch writes and keeps the first error.
type stager struct {
	b   db.Batch
	err error
}

func (s *stager) put(cf string, k, v []byte) {
	if s.err == nil {
		s.err = s.b.Put(cf, k, v)
	}
}

func (s *stager) del(cf string, k []byte) {
	if s.err == nil {
		s.err = s.b.Delete(cf, k)
	}
}
