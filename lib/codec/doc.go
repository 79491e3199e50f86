// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the collector's serialization primitives:
// deterministic CBOR, self-describing compressed blobs, and metadata
// fingerprints.
//
// Pelorus uses two formats with a clear boundary:
//
//   - JSON for the shore API and the instrument feed, where the field
//     names are an external contract (see lib/schema).
//   - CBOR for everything stored locally: tracklog rows, the cached
//     shore configuration, and the fingerprint input for vessel
//     metadata.
//
// The CBOR encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Equal values always encode to equal bytes, which is what
// makes MetadataFingerprint meaningful.
//
// Stored rows go through Pack/Unpack, which wrap the CBOR encoding in
// a one-byte compression tag plus recorded length. Track points are
// small and use LZ4; larger blobs use zstd; payloads that do not
// shrink are stored raw under TagNone. A row written by any past
// version of the collector identifies its own compression.
//
// fxamacker/cbor reads `json` struct tags when `cbor` tags are
// absent, so the schema types keep a single set of tags for both
// formats.
package codec
