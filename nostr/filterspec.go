package nostr

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FilterSpec is the NIP-01 JSON filter object:
//
//	{"kinds":[1],"authors":["<hex>"],"#e":["<hex>"],"since":0,"until":0,"limit":10,"search":"word"}
//
// It is a host-side description; the engine filter is built from it by
// driving the builder chain.
type FilterSpec struct {
	Kinds   []uint32
	Authors [][32]byte
	Tags    map[string][]string // single-letter tag name -> values
	Since   *int64
	Until   *int64
	Limit   *int64
	Search  string
}

// UnmarshalJSON accepts the NIP-01 field set, including "#<letter>" tag keys.
func (f *FilterSpec) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: filter: %w", ErrMalformed, err)
	}

	*f = FilterSpec{}
	for name, raw := range fields {
		var err error
		switch {
		case name == "kinds":
			err = json.Unmarshal(raw, &f.Kinds)
		case name == "authors":
			var hexes []string
			if err = json.Unmarshal(raw, &hexes); err == nil {
				for _, h := range hexes {
					pk, derr := Decode32(h)
					if derr != nil {
						err = derr
						break
					}
					f.Authors = append(f.Authors, pk)
				}
			}
		case name == "since":
			err = json.Unmarshal(raw, &f.Since)
		case name == "until":
			err = json.Unmarshal(raw, &f.Until)
		case name == "limit":
			err = json.Unmarshal(raw, &f.Limit)
		case name == "search":
			err = json.Unmarshal(raw, &f.Search)
		case strings.HasPrefix(name, "#") && len(name) > 1:
			var values []string
			if err = json.Unmarshal(raw, &values); err == nil {
				if f.Tags == nil {
					f.Tags = make(map[string][]string)
				}
				f.Tags[name[1:]] = values
			}
		default:
			// ids and unknown keys are not supported by the engine filter.
			return fmt.Errorf("%w: unsupported filter field %q", ErrMalformed, name)
		}
		if err != nil {
			return fmt.Errorf("%w: filter field %q: %w", ErrMalformed, name, err)
		}
	}
	return nil
}

// TagNames returns the tag names in sorted order for deterministic builds.
func (f *FilterSpec) TagNames() []string {
	names := make([]string, 0, len(f.Tags))
	for n := range f.Tags {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
