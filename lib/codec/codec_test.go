// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{
		"zeta":  1,
		"alpha": "text",
		"mid":   []int{3, 2, 1},
	}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("deterministic encoding produced different bytes")
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	encoded, err := Marshal(map[string]any{"key": "value"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
}

type blobPayload struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Filler string  `json:"filler,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

func TestPackUnpackRoundTrip(t *testing.T) {
	in := blobPayload{Name: "track", Count: 42, Value: 59.9139}
	blob, err := Pack(in)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	var out blobPayload
	if err := Unpack(blob, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestPackLargeBlobUsesZstd(t *testing.T) {
	in := blobPayload{
		Name:   "snapshot",
		Filler: strings.Repeat("position position position ", 400),
	}
	blob, err := Pack(in)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if got := Tag(blob[0]); got != TagZstd {
		t.Fatalf("large compressible blob tag = %v, want %v", got, TagZstd)
	}

	var out blobPayload
	if err := Unpack(blob, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out.Filler != in.Filler {
		t.Fatal("zstd round trip lost payload")
	}
}

func TestPackIncompressibleFallsBackToNone(t *testing.T) {
	noise := make([]byte, 512)
	if _, err := rand.Read(noise); err != nil {
		t.Fatalf("rand: %v", err)
	}
	blob, err := Pack(noise)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if got := Tag(blob[0]); got != TagNone {
		t.Fatalf("random blob tag = %v, want %v", got, TagNone)
	}

	var out []byte
	if err := Unpack(blob, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(out, noise) {
		t.Fatal("uncompressed round trip lost payload")
	}
}

func TestUnpackRejectsTruncatedBlob(t *testing.T) {
	if err := Unpack([]byte{0, 1}, &struct{}{}); err == nil {
		t.Fatal("truncated blob should fail")
	}
}

func TestUnpackRejectsUnknownTag(t *testing.T) {
	blob := []byte{99, 0, 0, 0, 0}
	if err := Unpack(blob, &struct{}{}); err == nil {
		t.Fatal("unknown tag should fail")
	}
}

func TestMetadataFingerprintStableAndDistinct(t *testing.T) {
	a, err := Marshal(map[string]string{"name": "Quercia"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(map[string]string{"name": "Meridian"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if MetadataFingerprint(a) != MetadataFingerprint(a) {
		t.Fatal("same encoding produced different fingerprints")
	}
	if MetadataFingerprint(a) == MetadataFingerprint(b) {
		t.Fatal("different encodings produced the same fingerprint")
	}
}

func TestFingerprintHexAndZero(t *testing.T) {
	var zero Fingerprint
	if !zero.IsZero() {
		t.Fatal("zero fingerprint should report IsZero")
	}
	fp := MetadataFingerprint([]byte("x"))
	if fp.IsZero() {
		t.Fatal("computed fingerprint should not be zero")
	}
	if len(fp.Hex()) != 64 {
		t.Fatalf("Hex length = %d, want 64", len(fp.Hex()))
	}
}
