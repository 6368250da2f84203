package boundary

import (
	"encoding/binary"
	"unicode/utf8"
)

// Handle roles named in NullHandle messages.
const (
	roleDatabase = "database"
	roleTxn      = "transaction"
	roleBuilder  = "filter builder"
	roleFilter   = "filter"
)

// decodeText converts host text, which arrives as UTF-8 bytes. A nil
// slice is the empty string.
func decodeText(what string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", newError(InvalidEncoding, "%s is not valid UTF-8", what)
	}
	return string(b), nil
}

func decodeTexts(what string, bs [][]byte) ([]string, error) {
	out := make([]string, len(bs))
	for i, b := range bs {
		s, err := decodeText(what, b)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decode32(what string, b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != len(out) {
		return out, newError(InvalidLength, "%s: expected 32 bytes, got %d", what, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func requireHandle(role string, h int64) error {
	if h == 0 {
		return newError(NullHandle, "%s handle is null", role)
	}
	return nil
}

// toHost copies native bytes into host memory.
func toHost(env Env, b []byte) ([]byte, error) {
	out, err := env.NewByteArray(b)
	if err != nil {
		return nil, wrapError(BoundaryFailure, err, "allocate %d-byte host array", len(b))
	}
	return out, nil
}

// chunkKinds reads 4-byte little-endian kinds. The second result is the
// number of trailing bytes that did not form a whole chunk.
func chunkKinds(b []byte) ([]uint32, int) {
	kinds := make([]uint32, 0, len(b)/4)
	for len(b) >= 4 {
		kinds = append(kinds, binary.LittleEndian.Uint32(b))
		b = b[4:]
	}
	return kinds, len(b)
}

// chunkPubkeys reads 32-byte pubkeys, returning the leftover byte count.
func chunkPubkeys(b []byte) ([][32]byte, int) {
	pks := make([][32]byte, 0, len(b)/32)
	for len(b) >= 32 {
		var pk [32]byte
		copy(pk[:], b)
		pks = append(pks, pk)
		b = b[32:]
	}
	return pks, len(b)
}
