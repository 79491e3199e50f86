// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package tracklog

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pelorus-marine/pelorus/lib/codec"
	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/sqlitepool"
)

// Store is the collector's durable local state: the append-only track
// buffer awaiting upload, the cached shore configuration, and the
// metadata fingerprint of the last acknowledged vessel document. One
// SQLite file holds all three so a boat installation has exactly one
// thing to back up.
//
// Write path: the engine appends each persisted track point; the sync
// drain prunes acked rows. Both go through IMMEDIATE transactions, so
// overlapping writers serialize at the database instead of racing.
//
// Read path: the drain peeks the oldest batch without mutating, the
// status endpoint counts the backlog, and startup seeds the evaluator
// from the newest row's timestamp.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize overrides the connection pool size; zero uses the
	// sqlitepool default.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS track_points (
		ts    INTEGER PRIMARY KEY,
		point BLOB    NOT NULL
	);
	CREATE TABLE IF NOT EXISTS shore_config (
		id     INTEGER PRIMARY KEY CHECK (id = 1),
		config BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
`

// Meta table keys.
const (
	metaFingerprint = "metadata_fingerprint"
	metaLastSync    = "last_sync"
)

// Open creates or opens the store. The schema is applied to every new
// connection; opening an existing file from an older collector
// version is safe because the DDL is idempotent.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("tracklog: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schemaSQL, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tracklog: %w", err)
	}

	return &Store{pool: pool, logger: cfg.Logger}, nil
}

// Close closes the underlying pool, blocking until borrowed
// connections return.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Append inserts one track point. The row key is the point's
// timestamp in Unix seconds; if a clock step ever produces a
// timestamp at or before the newest row, the point is stamped one
// second after it so the buffer stays strictly ascending and the
// shore cursor stays meaningful.
func (s *Store) Append(ctx context.Context, point schema.TrackPoint) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tracklog: append: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tracklog: begin append: %w", err)
	}
	defer endTransaction(&err)

	var newest int64
	err = sqlitex.Execute(conn, "SELECT COALESCE(MAX(ts), 0) FROM track_points", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			newest = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("tracklog: reading newest timestamp: %w", err)
	}

	if point.Timestamp <= newest {
		s.logger.Debug("track point timestamp adjusted",
			"ts", point.Timestamp,
			"newest", newest,
		)
		point.Timestamp = newest + 1
	}

	blob, err := codec.Pack(point)
	if err != nil {
		return fmt.Errorf("tracklog: encoding point: %w", err)
	}

	err = sqlitex.Execute(conn, "INSERT INTO track_points (ts, point) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{point.Timestamp, blob},
	})
	if err != nil {
		return fmt.Errorf("tracklog: inserting point: %w", err)
	}
	return nil
}

// PeekBatch returns up to limit of the oldest buffered points in
// ascending timestamp order without removing them. An empty buffer
// returns an empty slice.
func (s *Store) PeekBatch(ctx context.Context, limit int) ([]schema.TrackPoint, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("tracklog: peek batch: non-positive limit %d", limit)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracklog: peek batch: %w", err)
	}
	defer s.pool.Put(conn)

	points := make([]schema.TrackPoint, 0, limit)
	err = sqlitex.Execute(conn, "SELECT ts, point FROM track_points ORDER BY ts ASC LIMIT ?", &sqlitex.ExecOptions{
		Args: []any{limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, blob)

			var point schema.TrackPoint
			if err := codec.Unpack(blob, &point); err != nil {
				return fmt.Errorf("row ts=%d: %w", stmt.ColumnInt64(0), err)
			}
			// The column is what the prune comparison uses, so it is
			// authoritative over the blob copy.
			point.Timestamp = stmt.ColumnInt64(0)
			points = append(points, point)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tracklog: peek batch: %w", err)
	}
	return points, nil
}

// PruneUpTo deletes every point with a timestamp at or before the
// shore's ack cursor and returns how many rows went. A stale or
// repeated cursor deletes nothing; the call is idempotent.
func (s *Store) PruneUpTo(ctx context.Context, cursor int64) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracklog: prune: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("tracklog: begin prune: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, "DELETE FROM track_points WHERE ts <= ?", &sqlitex.ExecOptions{
		Args: []any{cursor},
	})
	if err != nil {
		return 0, fmt.Errorf("tracklog: deleting acked points: %w", err)
	}
	return conn.Changes(), nil
}

// Count returns the buffered backlog depth.
func (s *Store) Count(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracklog: count: %w", err)
	}
	defer s.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM track_points", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("tracklog: count: %w", err)
	}
	return count, nil
}

// LastPersisted returns the newest buffered timestamp in Unix
// seconds, or 0 when the buffer is empty. Startup seeds the
// significance evaluator with it so a restart does not immediately
// fire the heartbeat trigger.
func (s *Store) LastPersisted(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracklog: last persisted: %w", err)
	}
	defer s.pool.Put(conn)

	var newest int64
	err = sqlitex.Execute(conn, "SELECT COALESCE(MAX(ts), 0) FROM track_points", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			newest = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("tracklog: last persisted: %w", err)
	}
	return newest, nil
}

// CachedConfig returns the stored shore configuration. ok is false
// when no configuration has ever been fetched.
func (s *Store) CachedConfig(ctx context.Context) (cfg schema.ShoreConfig, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return schema.ShoreConfig{}, false, fmt.Errorf("tracklog: cached config: %w", err)
	}
	defer s.pool.Put(conn)

	var blob []byte
	err = sqlitex.Execute(conn, "SELECT config FROM shore_config WHERE id = 1", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			return nil
		},
	})
	if err != nil {
		return schema.ShoreConfig{}, false, fmt.Errorf("tracklog: cached config: %w", err)
	}
	if blob == nil {
		return schema.ShoreConfig{}, false, nil
	}

	if err := codec.Unpack(blob, &cfg); err != nil {
		return schema.ShoreConfig{}, false, fmt.Errorf("tracklog: decoding cached config: %w", err)
	}
	return cfg, true, nil
}

// StoreConfig replaces the cached shore configuration.
func (s *Store) StoreConfig(ctx context.Context, cfg schema.ShoreConfig) error {
	blob, err := codec.Pack(cfg)
	if err != nil {
		return fmt.Errorf("tracklog: encoding config: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tracklog: store config: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tracklog: begin store config: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO shore_config (id, config) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET config = excluded.config`, &sqlitex.ExecOptions{
		Args: []any{blob},
	})
	if err != nil {
		return fmt.Errorf("tracklog: writing config: %w", err)
	}
	return nil
}

// MetadataFingerprint returns the fingerprint of the last vessel
// metadata document the shore acknowledged, or the zero fingerprint
// if none has been pushed.
func (s *Store) MetadataFingerprint(ctx context.Context) (codec.Fingerprint, error) {
	value, err := s.metaValue(ctx, metaFingerprint)
	if err != nil {
		return codec.Fingerprint{}, err
	}

	var fp codec.Fingerprint
	if len(value) == len(fp) {
		copy(fp[:], value)
	}
	return fp, nil
}

// SetMetadataFingerprint records the fingerprint of a successfully
// pushed vessel metadata document.
func (s *Store) SetMetadataFingerprint(ctx context.Context, fp codec.Fingerprint) error {
	return s.setMetaValue(ctx, metaFingerprint, fp[:])
}

// LastSync returns the Unix seconds of the last successful shore
// exchange, or 0 if none has ever happened. Survives restarts so the
// status endpoint stays truthful after a reboot.
func (s *Store) LastSync(ctx context.Context) (int64, error) {
	value, err := s.metaValue(ctx, metaLastSync)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	var ts int64
	if err := codec.Unmarshal(value, &ts); err != nil {
		return 0, fmt.Errorf("tracklog: decoding last sync: %w", err)
	}
	return ts, nil
}

// SetLastSync records a successful shore exchange.
func (s *Store) SetLastSync(ctx context.Context, ts int64) error {
	value, err := codec.Marshal(ts)
	if err != nil {
		return fmt.Errorf("tracklog: encoding last sync: %w", err)
	}
	return s.setMetaValue(ctx, metaLastSync, value)
}

func (s *Store) metaValue(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracklog: meta %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	var value []byte
	err = sqlitex.Execute(conn, "SELECT value FROM meta WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tracklog: meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMetaValue(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tracklog: set meta %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tracklog: begin set meta %s: %w", key, err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, &sqlitex.ExecOptions{
		Args: []any{key, value},
	})
	if err != nil {
		return fmt.Errorf("tracklog: writing meta %s: %w", key, err)
	}
	return nil
}
