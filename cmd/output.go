package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/wire"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatKeys = "keys"
)

// parseFilter reads a NIP-01 filter written as JSONC (comments and
// trailing commas allowed).
func parseFilter(data []byte) (*nostr.FilterSpec, error) {
	std, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	var spec nostr.FilterSpec
	if err := json.Unmarshal(std, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func readFilter(path string) (*nostr.FilterSpec, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return parseFilter(data)
}

// encode renders v as json or yaml.
func encode(format string, v any) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case formatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	case formatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
	return buf.Bytes(), nil
}

// noteValue decodes a note document into its render form.
func noteValue(doc []byte) (wire.Note, error) {
	ev, err := wire.DecodeNote(doc)
	if err != nil {
		return wire.Note{}, err
	}
	return wire.NoteFromEvent(ev), nil
}

// profileValue decodes a profile document. Profiles hold only strings, so
// a generic map renders the same in json and yaml.
func profileValue(doc []byte) (map[string]any, error) {
	m := map[string]any{}
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func formatKeyList(keys []uint64) []byte {
	var buf []byte
	for _, k := range keys {
		buf = strconv.AppendUint(buf, k, 10)
		buf = append(buf, '\n')
	}
	return buf
}

func formatPubkeys(pks [][32]byte) []byte {
	var buf []byte
	for _, pk := range pks {
		buf = hex.AppendEncode(buf, pk[:])
		buf = append(buf, '\n')
	}
	return buf
}

// emit writes out to path atomically, or to w when path is empty.
func emit(w io.Writer, path string, out []byte) error {
	if path == "" {
		_, err := w.Write(out)
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
