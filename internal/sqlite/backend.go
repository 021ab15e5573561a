// Package sqlite implements the KV primitive on SQLite. It is the default
// backend: a single database file in the data directory, no server required.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "apexdraft.db"

// ErrDetached is returned by operations on a backend that is not attached.
var ErrDetached = errors.New("sqlite backend is detached")

// Backend implements types.KV and types.CompareAndSwapper on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	path     string
	db       *sql.DB
}

var (
	_ types.KV                = (*Backend)(nil)
	_ types.CompareAndSwapper = (*Backend)(nil)
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a data directory to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Open creates a backend and attaches it to dataDir.
func Open(dataDir string) (*Backend, error) {
	b := NewBackend()
	if err := b.Attach(dataDir); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach creates dataDir if it does not exist, opens the database file and
// initializes the schema. Returns an error if already attached.
func (b *Backend) Attach(dataDir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return errors.New("sqlite backend is already attached")
	}

	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway
	// and this keeps conditional updates free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("init schema: %w", err)
		}
	}

	b.db = db
	b.path = path
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// Close implements types.KV.
func (b *Backend) Close() error {
	return b.Detach()
}

// Path returns the database file path, empty when detached.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// conn returns the open database or ErrDetached.
// The caller must hold b.mu (read lock).
func (b *Backend) conn() (*sql.DB, error) {
	if !b.attached || b.db == nil {
		return nil, ErrDetached
	}
	return b.db, nil
}

// Get implements types.KV.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, types.NewStorageError("get", key, err)
	}
	var value []byte
	err = db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrKeyNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get", key, err)
	}
	return value, nil
}

// Put implements types.KV.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return types.NewStorageError("put", key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, now())
	return types.NewStorageError("put", key, err)
}

// Delete implements types.KV.
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return false, types.NewStorageError("delete", key, err)
	}
	res, err := db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return false, types.NewStorageError("delete", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, types.NewStorageError("delete", key, err)
	}
	return n > 0, nil
}

// List implements types.KV. Keys are compared bytewise (BINARY collation),
// so the prefix maps onto a half-open key range.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, types.NewStorageError("list", prefix, err)
	}

	var rows *sql.Rows
	end, bounded := prefixEnd(prefix)
	if bounded {
		rows, err = db.QueryContext(ctx,
			"SELECT key FROM kv WHERE key >= ? AND key < ? ORDER BY key", prefix, end)
	} else {
		rows, err = db.QueryContext(ctx,
			"SELECT key FROM kv WHERE key >= ? ORDER BY key", prefix)
	}
	if err != nil {
		return nil, types.NewStorageError("list", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, types.NewStorageError("list", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list", prefix, err)
	}
	return keys, nil
}

// CompareAndSwap implements types.CompareAndSwapper.
func (b *Backend) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return false, types.NewStorageError("cas", key, err)
	}

	var res sql.Result
	if prev == nil {
		res, err = db.ExecContext(ctx,
			"INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING",
			key, next, now())
	} else {
		res, err = db.ExecContext(ctx,
			"UPDATE kv SET value = ?, updated_at = ? WHERE key = ? AND value = ?",
			next, now(), key, nonNil(prev))
	}
	if err != nil {
		return false, types.NewStorageError("cas", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, types.NewStorageError("cas", key, err)
	}
	return n == 1, nil
}

// prefixEnd returns the smallest string greater than every string with the
// given prefix. bounded is false when no such string exists (empty prefix or
// a prefix made only of 0xff bytes).
func prefixEnd(prefix string) (end string, bounded bool) {
	p := []byte(prefix)
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] < 0xff {
			p[i]++
			return string(p[:i+1]), true
		}
	}
	return "", false
}

// nonNil turns an empty non-nil prev into a zero-length blob so the UPDATE
// compares against an empty value rather than NULL.
func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return bytes.Clone(v)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
