// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracklog is the collector's durable buffer: every track
// point the significance evaluator persists lands here first and
// leaves only when the shore acknowledges it.
//
// The contract with the sync engine is deliberately narrow:
//
//   - Append adds one point, keeping timestamps strictly ascending.
//   - PeekBatch returns the oldest points without consuming them.
//   - PruneUpTo deletes everything at or before the shore's ack
//     cursor, idempotently.
//   - Count and LastPersisted serve the status endpoint and startup
//     seeding.
//
// Peek-then-prune (rather than pop) means a crash between upload and
// ack re-uploads instead of losing data; the shore deduplicates by
// timestamp.
//
// Rows store the point as a compressed CBOR blob (codec.Pack) beside
// a bare integer timestamp column. The column is the sync cursor's
// comparison key; the blob carries the full payload, so new point
// fields never need a schema migration.
//
// The same database file also caches the remote shore configuration
// and the fingerprint of the last acknowledged vessel metadata
// document, giving restarts a working configuration before the first
// round trip.
package tracklog
