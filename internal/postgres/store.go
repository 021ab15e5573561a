// Package postgres implements the KV primitive on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

const createKV = `CREATE TABLE IF NOT EXISTS apexdraft_kv (
    key TEXT PRIMARY KEY,
    value BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store implements types.KV and types.CompareAndSwapper on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ types.KV                = (*Store)(nil)
	_ types.CompareAndSwapper = (*Store)(nil)
)

// Open connects to dsn, verifies the connection and creates the table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := NewWithPool(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool. The store takes ownership of it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the key-value table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createKV); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Get implements types.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM apexdraft_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrKeyNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get", key, err)
	}
	return value, nil
}

// Put implements types.KV.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO apexdraft_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, value)
	return types.NewStorageError("put", key, err)
}

// Delete implements types.KV.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM apexdraft_kv WHERE key = $1`, key)
	if err != nil {
		return false, types.NewStorageError("delete", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List implements types.KV. The "C" collation gives bytewise ordering.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM apexdraft_kv WHERE key LIKE $1 ESCAPE '\' ORDER BY key COLLATE "C"`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, types.NewStorageError("list", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, types.NewStorageError("list", prefix, err)
	}
	return keys, nil
}

// CompareAndSwap implements types.CompareAndSwapper.
func (s *Store) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	var (
		sql  string
		args []any
	)
	if prev == nil {
		sql = `INSERT INTO apexdraft_kv (key, value, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (key) DO NOTHING`
		args = []any{key, next}
	} else {
		sql = `UPDATE apexdraft_kv SET value = $2, updated_at = NOW() WHERE key = $1 AND value = $3`
		args = []any{key, next, prev}
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, types.NewStorageError("cas", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Close implements types.KV.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// escapeLike escapes LIKE wildcards so prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
