package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_namespaces (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL REFERENCES cache_namespaces(name) ON DELETE CASCADE,
	cache_key TEXT NOT NULL,
	entry     BLOB NOT NULL,
	cached_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, cache_key)
);
`

// SQLiteStorage persists namespaces in a local SQLite file.
type SQLiteStorage struct {
	sqlDB  *sql.DB
	logger zerolog.Logger
}

// Verify interface implementation
var _ Storage = (*SQLiteStorage)(nil)

// OpenSQLiteStorage opens (or creates) the SQLite file at path and applies the schema.
func OpenSQLiteStorage(path string, logger zerolog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStorage{sqlDB: sqlDB, logger: logger}, nil
}

// Open registers the namespace and returns a handle to it.
func (s *SQLiteStorage) Open(ctx context.Context, name string) (Namespace, error) {
	if name == "" {
		return nil, fmt.Errorf("namespace name cannot be empty")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_namespaces (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC().UnixMilli())
	if err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("insert namespace: %w", err)
	}
	return &sqliteNamespace{storage: s, name: name}, nil
}

// Names lists namespaces, sorted.
func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM cache_namespaces ORDER BY name`)
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Drop removes a namespace; entries go with it through the foreign key cascade.
func (s *SQLiteStorage) Drop(ctx context.Context, name string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, name); err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("delete entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_namespaces WHERE name = ?`, name)
	if err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("delete namespace: %w", err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("commit: %w", err)
	}

	affected, _ := res.RowsAffected()
	s.logger.Debug().Str("namespace", name).Int64("rows", affected).Msg("Dropped namespace")
	return affected > 0, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type sqliteNamespace struct {
	storage *SQLiteStorage
	name    string
}

func (n *sqliteNamespace) Name() string {
	return n.name
}

func (n *sqliteNamespace) Match(ctx context.Context, key Key) (*Entry, error) {
	var data []byte
	err := n.storage.sqlDB.QueryRowContext(ctx,
		`SELECT entry FROM cache_entries WHERE namespace = ? AND cache_key = ?`,
		n.name, key.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			recordMatch(n.name, ErrCacheMiss)
			return nil, ErrCacheMiss
		}
		recordMatch(n.name, err)
		return nil, fmt.Errorf("select entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	recordMatch(n.name, nil)
	return &entry, nil
}

func (n *sqliteNamespace) Put(ctx context.Context, key Key, entry *Entry) error {
	if err := checkPut(key, entry); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = n.storage.sqlDB.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, cache_key, entry, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, cache_key) DO UPDATE SET entry = excluded.entry, cached_at = excluded.cached_at`,
		n.name, key.String(), data, entry.CachedAt.UTC().UnixMilli())
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("upsert entry: %w", err)
	}

	CacheWrittenBytes.WithLabelValues(n.name).Add(float64(entry.Size()))
	return nil
}

func (n *sqliteNamespace) Delete(ctx context.Context, key Key) error {
	_, err := n.storage.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND cache_key = ?`, n.name, key.String())
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (n *sqliteNamespace) Keys(ctx context.Context) ([]Key, error) {
	rows, err := n.storage.sqlDB.QueryContext(ctx,
		`SELECT cache_key FROM cache_entries WHERE namespace = ? ORDER BY cache_key`, n.name)
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		key, err := ParseKey(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
