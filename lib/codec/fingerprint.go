// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 keyed digest of a canonical CBOR
// encoding. The collector fingerprints its vessel metadata document
// and skips republishing when the digest has not changed since the
// last acknowledged push.
type Fingerprint [32]byte

// metadataKey is the BLAKE3 domain key for metadata fingerprints. The
// bytes are the ASCII domain name zero-padded to 32, readable in hex
// dumps without weakening the keyed mode.
var metadataKey = [32]byte{
	'p', 'e', 'l', 'o', 'r', 'u', 's', '.',
	'm', 'e', 't', 'a', 'd', 'a', 't', 'a',
}

// MetadataFingerprint computes the metadata-domain fingerprint of the
// given canonical encoding. Pass bytes produced by Marshal; the
// deterministic encoder guarantees equal documents hash equal.
func MetadataFingerprint(encoded []byte) Fingerprint {
	// NewKeyed requires exactly 32 bytes, which metadataKey guarantees.
	hasher, err := blake3.NewKeyed(metadataKey[:])
	if err != nil {
		panic("codec: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(encoded)

	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp
}

// Hex returns the lowercase hex form used in logs and the tracklog
// meta table.
func (f Fingerprint) Hex() string { return hex.EncodeToString(f[:]) }

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }
