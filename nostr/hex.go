package nostr

import (
	"encoding/hex"
	"fmt"
)

// DecodeHex decodes s into dst, requiring exactly len(dst) bytes.
func DecodeHex(dst []byte, s string) error {
	if len(s) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("expected %d hex chars, got %d", hex.EncodedLen(len(dst)), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// Decode32 parses a 64-character hex id or pubkey.
func Decode32(s string) ([32]byte, error) {
	var out [32]byte
	err := DecodeHex(out[:], s)
	return out, err
}
