// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool under the
// collector's local storage.
//
// The tracklog keeps the durable track buffer, the cached shore
// configuration, and the metadata fingerprint in one database file;
// this package wraps zombiezen.com/go/sqlite with the pragmas that
// file is always opened with: WAL journal mode, NORMAL synchronous,
// memory-mapped reads, and a busy timeout for write contention.
//
// The pool is built on sqlitex.Pool. Callers [Pool.Take] a
// connection, work, and [Pool.Put] it back. Connections are not safe
// for concurrent use; each goroutine holds its own.
//
// # Pragmas
//
//   - journal_mode=WAL: the sync drain reads while the ingest path
//     appends, with neither blocking the other.
//   - synchronous=NORMAL: transactions survive process crashes. A
//     power cut may lose the last few appends, a deliberate trade
//     against fsync-per-point wear on SD-card installations.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock
//     instead of failing with SQLITE_BUSY.
//   - foreign_keys=OFF: the tracklog's two tables have no relations.
//   - cache_size=-2048: 2 MB page cache per connection, sized for
//     single-board hosts.
//   - mmap_size=67108864: 64 MB memory-mapped I/O for reads.
//   - temp_store=MEMORY: temporary structures stay off the card.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/pelorus/tracklog.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// # Design
//
// Intentionally thin: standard pragmas, underlying zombiezen types
// exposed directly. The tracklog writes SQL, uses sqlitex.Execute for
// cached statements, and manages transactions with
// sqlitex.ImmediateTransaction. No query builder, no ORM.
package sqlitepool
