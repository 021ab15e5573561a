// Package redis implements the KV primitive on Redis.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 256

// Config holds connection settings for the redis backend.
type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // prepended to every key, e.g. "apexdraft:"
}

// Store implements types.KV and types.CompareAndSwapper on Redis.
type Store struct {
	client    *goredis.Client
	namespace string
}

var (
	_ types.KV                = (*Store)(nil)
	_ types.CompareAndSwapper = (*Store)(nil)
)

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := &goredis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: ping failed: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Namespace), nil
}

// NewWithClient wraps a pre-built client. The store takes ownership of it.
func NewWithClient(client *goredis.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(k string) string { return s.namespace + k }

// Get implements types.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, types.ErrKeyNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get", key, err)
	}
	return val, nil
}

// Put implements types.KV.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return types.NewStorageError("put", key, s.client.Set(ctx, s.key(key), value, 0).Err())
}

// Delete implements types.KV.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, types.NewStorageError("delete", key, err)
	}
	return n > 0, nil
}

// List implements types.KV using SCAN; it never blocks the server the way
// KEYS would. Keys are returned without the namespace, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, types.NewStorageError("list", prefix, err)
		}
		for _, k := range keys {
			// SCAN may return a key more than once.
			seen[strings.TrimPrefix(k, s.namespace)] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// CompareAndSwap implements types.CompareAndSwapper with WATCH/MULTI/EXEC.
func (s *Store) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	k := s.key(key)
	swapped := false
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
			if prev != nil {
				return nil
			}
		case err != nil:
			return err
		default:
			if prev == nil || !bytes.Equal(cur, prev) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, k, next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, k)
	if errors.Is(err, goredis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, types.NewStorageError("cas", key, err)
	}
	return swapped, nil
}

// Close implements types.KV.
func (s *Store) Close() error {
	return s.client.Close()
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
