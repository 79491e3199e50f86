// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire and storage types shared across the
// collector: instrument readings arriving on the feed, the track
// points persisted to the local buffer and uploaded to the shore, the
// proximity target table, vessel metadata, and the shore API request
// and response documents.
//
// These types are contracts. The tracklog encodes TrackPoint into its
// rows, the shore client serializes the same struct into upload
// bodies, and the shore's ack cursor is compared against
// TrackPoint.Timestamp, so all three must agree here. Field names on
// the wire follow the shore API's camelCase convention.
//
// Timestamps are Unix seconds UTC throughout. The shore cursor
// (processedUntil) is defined in the same unit, which keeps the prune
// comparison a plain integer test.
package schema
