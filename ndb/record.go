package ndb

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
)

// Stored note layout:
//
//	[codec 1B] (codec != none: [raw length varint]) [payload]
//
// The uncompressed payload is
//
//	id(32) pubkey(32) sig(64) created_at(varint) kind(varint)
//	tag count(varint) { field count(varint) { varstring }... }...
//	content(varstring)
//
// Varints and varstrings use the Bitcoin wire encoding.
const (
	codecNone byte = 0
	codecZstd byte = 1
	codecLZ4  byte = 2
)

const (
	recordPver    = 0
	maxTags       = 1 << 16
	maxTagFields  = 1 << 10
	maxRawLength  = 64 << 20
	minCompressed = 128
)

var (
	zstdEncoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}}
	zstdDecoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

func encodeRecord(ev *nostr.Event, comp Compression) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(ev.Content))
	buf.Write(ev.ID[:])
	buf.Write(ev.PubKey[:])
	buf.Write(ev.Sig[:])

	if err := wire.WriteVarInt(&buf, recordPver, ev.CreatedAt); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, recordPver, uint64(ev.Kind)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, recordPver, uint64(len(ev.Tags))); err != nil {
		return nil, err
	}
	for _, tag := range ev.Tags {
		if err := wire.WriteVarInt(&buf, recordPver, uint64(len(tag))); err != nil {
			return nil, err
		}
		for _, f := range tag {
			if err := wire.WriteVarString(&buf, recordPver, f); err != nil {
				return nil, err
			}
		}
	}
	if err := wire.WriteVarString(&buf, recordPver, ev.Content); err != nil {
		return nil, err
	}
	return compressRecord(buf.Bytes(), comp)
}

func compressRecord(raw []byte, comp Compression) ([]byte, error) {
	var (
		codec byte
		body  []byte
	)
	if len(raw) >= minCompressed {
		switch comp {
		case CompressionZstd:
			enc := zstdEncoderPool.Get().(*zstd.Encoder)
			body = enc.EncodeAll(raw, nil)
			zstdEncoderPool.Put(enc)
			codec = codecZstd
		case CompressionLZ4:
			dst := make([]byte, lz4.CompressBlockBound(len(raw)))
			n, err := lz4.CompressBlock(raw, dst, nil)
			if err != nil {
				return nil, fmt.Errorf("ndb: lz4 compress: %w", err)
			}
			// n == 0 means incompressible.
			body = dst[:n]
			codec = codecLZ4
		}
	}
	if codec == codecNone || len(body) == 0 || len(body) >= len(raw) {
		out := make([]byte, 0, 1+len(raw))
		out = append(out, codecNone)
		return append(out, raw...), nil
	}

	var out bytes.Buffer
	out.Grow(1 + wire.VarIntSerializeSize(uint64(len(raw))) + len(body))
	out.WriteByte(codec)
	if err := wire.WriteVarInt(&out, recordPver, uint64(len(raw))); err != nil {
		return nil, err
	}
	out.Write(body)
	return out.Bytes(), nil
}

func decompressRecord(rec []byte) ([]byte, error) {
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorruptRecord)
	}
	codec := rec[0]
	if codec == codecNone {
		return rec[1:], nil
	}

	r := bytes.NewReader(rec[1:])
	rawLen, err := wire.ReadVarInt(r, recordPver)
	if err != nil {
		return nil, fmt.Errorf("%w: raw length: %w", ErrCorruptRecord, err)
	}
	if rawLen > maxRawLength {
		return nil, fmt.Errorf("%w: raw length %d", ErrCorruptRecord, rawLen)
	}
	body := rec[len(rec)-r.Len():]

	switch codec {
	case codecZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptRecord, err)
		}
		if uint64(len(raw)) != rawLen {
			return nil, fmt.Errorf("%w: zstd size mismatch", ErrCorruptRecord)
		}
		return raw, nil
	case codecLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorruptRecord, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: lz4 size mismatch", ErrCorruptRecord)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorruptRecord, codec)
	}
}

func decodeRecord(rec []byte) (*nostr.Event, error) {
	raw, err := decompressRecord(rec)
	if err != nil {
		return nil, err
	}
	ev, err := readEvent(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return ev, nil
}

func readEvent(r *bytes.Reader) (*nostr.Event, error) {
	ev := &nostr.Event{}
	for _, dst := range [][]byte{ev.ID[:], ev.PubKey[:], ev.Sig[:]} {
		if _, err := io.ReadFull(r, dst); err != nil {
			return nil, err
		}
	}

	var err error
	if ev.CreatedAt, err = wire.ReadVarInt(r, recordPver); err != nil {
		return nil, err
	}
	kind, err := wire.ReadVarInt(r, recordPver)
	if err != nil {
		return nil, err
	}
	if kind > 0xffffffff {
		return nil, fmt.Errorf("kind %d out of range", kind)
	}
	ev.Kind = uint32(kind)

	ntags, err := wire.ReadVarInt(r, recordPver)
	if err != nil {
		return nil, err
	}
	if ntags > maxTags {
		return nil, fmt.Errorf("tag count %d", ntags)
	}
	ev.Tags = make([][]string, ntags)
	for i := range ev.Tags {
		nf, err := wire.ReadVarInt(r, recordPver)
		if err != nil {
			return nil, err
		}
		if nf > maxTagFields {
			return nil, fmt.Errorf("tag field count %d", nf)
		}
		tag := make([]string, nf)
		for j := range tag {
			if tag[j], err = wire.ReadVarString(r, recordPver); err != nil {
				return nil, err
			}
		}
		ev.Tags[i] = tag
	}

	if ev.Content, err = wire.ReadVarString(r, recordPver); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return ev, nil
}
