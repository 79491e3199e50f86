// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a stored blob. Tags are
// the first byte of every blob the tracklog writes; the values are
// storage constants and must not change.
type Tag uint8

const (
	// TagNone is uncompressed payload. Chosen for blobs too small to
	// compress and for payloads the compressors cannot shrink.
	TagNone Tag = 0

	// TagLZ4 is LZ4 block compression. The default for track point
	// rows: cheap enough to run on every append.
	TagLZ4 Tag = 1

	// TagZstd is zstd at its default level. Used for larger blobs
	// (cached configuration, target table snapshots) where ratio
	// matters more than per-append cost.
	TagZstd Tag = 2
)

// String returns the tag's human-readable name.
func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagLZ4:
		return "lz4"
	case TagZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Blob layout: 1 tag byte, 4 bytes big-endian uncompressed length,
// then the (possibly compressed) payload.
const blobHeaderSize = 5

// zstdThreshold is the payload size at which Pack switches from LZ4
// to zstd. Below it the zstd overhead is not worth the ratio.
const zstdThreshold = 4096

// errIncompressible signals that a compressor could not shrink the
// payload; Pack falls back to TagNone.
var errIncompressible = errors.New("codec: payload incompressible")

// Pack CBOR-encodes v and wraps it in a self-describing compressed
// blob. Small payloads use LZ4, large ones zstd; either way a payload
// that does not shrink is stored uncompressed.
func Pack(v any) ([]byte, error) {
	plain, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding blob: %w", err)
	}
	if len(plain) > math.MaxUint32 {
		return nil, fmt.Errorf("codec: blob too large: %d bytes", len(plain))
	}

	tag := TagLZ4
	if len(plain) >= zstdThreshold {
		tag = TagZstd
	}

	var compressed []byte
	switch tag {
	case TagLZ4:
		compressed, err = compressLZ4(plain)
	case TagZstd:
		compressed, err = compressZstd(plain)
	}
	if errors.Is(err, errIncompressible) {
		tag, compressed = TagNone, plain
	} else if err != nil {
		return nil, err
	}

	blob := make([]byte, blobHeaderSize+len(compressed))
	blob[0] = byte(tag)
	binary.BigEndian.PutUint32(blob[1:blobHeaderSize], uint32(len(plain)))
	copy(blob[blobHeaderSize:], compressed)
	return blob, nil
}

// Unpack reverses Pack: decompress per the blob's tag, verify the
// recorded length, and CBOR-decode into v.
func Unpack(blob []byte, v any) error {
	if len(blob) < blobHeaderSize {
		return fmt.Errorf("codec: blob truncated: %d bytes", len(blob))
	}
	tag := Tag(blob[0])
	size := int(binary.BigEndian.Uint32(blob[1:blobHeaderSize]))
	payload := blob[blobHeaderSize:]

	var plain []byte
	var err error
	switch tag {
	case TagNone:
		if len(payload) != size {
			return fmt.Errorf("codec: uncompressed blob: %d bytes, header says %d", len(payload), size)
		}
		plain = payload
	case TagLZ4:
		plain, err = decompressLZ4(payload, size)
	case TagZstd:
		plain, err = decompressZstd(payload, size)
	default:
		return fmt.Errorf("codec: unknown blob tag %d", blob[0])
	}
	if err != nil {
		return err
	}

	if err := Unmarshal(plain, v); err != nil {
		return fmt.Errorf("codec: decoding blob: %w", err)
	}
	return nil
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)

	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input; also reject
	// output that fails to shrink.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return dst[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("codec: lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return dst, nil
}

// The zstd encoder and decoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("codec: zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
