package ndb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// ProfileRecord is the current kind-0 metadata of a pubkey.
type ProfileRecord struct {
	// NoteKey is the key of the kind-0 note the profile came from.
	NoteKey   uint64
	CreatedAt uint64
	// Profile is nil when the note content is not a valid profile.
	Profile *nostr.Profile
}

func encodeProfileRef(key, created uint64) []byte {
	b := binary.BigEndian.AppendUint64(make([]byte, 0, 16), key)
	return binary.BigEndian.AppendUint64(b, created)
}

func decodeProfileRef(v []byte) (key, created uint64, err error) {
	if len(v) != 16 {
		return 0, 0, fmt.Errorf("%w: profile ref is %d bytes", ErrCorruptRecord, len(v))
	}
	return binary.BigEndian.Uint64(v), binary.BigEndian.Uint64(v[8:]), nil
}

func nameKey(name string, pk [32]byte) []byte {
	k := make([]byte, 0, len(name)+1+32)
	k = append(k, name...)
	k = append(k, 0)
	return append(k, pk[:]...)
}

func profileNames(content string) []string {
	p, err := nostr.ParseProfile(content)
	if err != nil {
		return nil
	}
	return p.SearchNames()
}

// indexProfile makes ev the pubkey's profile unless a newer one is
// already stored, and moves the name index entries along with it.
func (n *Ndb) indexProfile(st *stager, ev *nostr.Event, key uint64) error {
	ref, err := n.store.Get(cfProfiles, ev.PubKey[:])
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("ndb: profile lookup: %w", err)
	default:
		oldKey, oldCreated, err := decodeProfileRef(ref)
		if err != nil {
			return err
		}
		if oldCreated >= ev.CreatedAt {
			return nil
		}
		rec, err := n.store.Get(cfNotes, u64Key(oldKey))
		if err != nil {
			return fmt.Errorf("ndb: load previous profile %d: %w", oldKey, err)
		}
		old, err := decodeRecord(rec)
		if err != nil {
			return err
		}
		for _, name := range profileNames(old.Content) {
			st.del(cfNames, nameKey(name, ev.PubKey))
		}
	}

	st.put(cfProfiles, ev.PubKey[:], encodeProfileRef(key, ev.CreatedAt))
	for _, name := range profileNames(ev.Content) {
		st.put(cfNames, nameKey(name, ev.PubKey), nil)
	}
	return nil
}

// GetProfileByPubkey returns the newest profile of pk, or ErrNotFound.
func (n *Ndb) GetProfileByPubkey(txn *Txn, pk [32]byte) (*ProfileRecord, error) {
	var out *ProfileRecord
	err := n.view(txn, func(r db.Reader) error {
		ref, err := r.Get(cfProfiles, pk[:])
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, created, err := decodeProfileRef(ref)
		if err != nil {
			return err
		}
		ev, err := loadNote(r, key)
		if err != nil {
			return err
		}
		out = &ProfileRecord{NoteKey: key, CreatedAt: created}
		if p, perr := nostr.ParseProfile(ev.Content); perr == nil {
			out.Profile = p
		}
		return nil
	})
	return out, err
}
