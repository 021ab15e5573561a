package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redisstore "github.com/mesh-intelligence/apexdraft/internal/redis"
	"github.com/mesh-intelligence/apexdraft/internal/sqlite"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// backend names a KV factory the collection tests run against.
type backend struct {
	name  string
	newKV func(t *testing.T) types.KV
}

// plainKV hides CompareAndSwap so the unconditional write path is exercised.
type plainKV struct{ types.KV }

func newSQLiteKV(t *testing.T) types.KV {
	t.Helper()
	b, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func newRedisKV(t *testing.T) types.KV {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisstore.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { s.Close() })
	return s
}

var backends = []backend{
	{name: "sqlite", newKV: newSQLiteKV},
	{name: "redis", newKV: newRedisKV},
	{name: "sqlite without cas", newKV: func(t *testing.T) types.KV { return plainKV{newSQLiteKV(t)} }},
}

// forEachBackend runs fn once per backend as a subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, kv types.KV)) {
	t.Helper()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.newKV(t))
		})
	}
}

// sequentialIDs returns an id generator producing prefix1, prefix2, ...
func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func testOptions() Options {
	return Options{
		NewID: sequentialIDs("id-"),
		Now:   func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	}
}

func userNames(users []types.User) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return names
}

// collectAll pages through a collection and returns every record in order.
func collectAll(t *testing.T, users *Users, limit int) []types.User {
	t.Helper()
	ctx := context.Background()
	var (
		all    []types.User
		cursor string
	)
	for pages := 0; ; pages++ {
		require.Less(t, pages, 1000, "pagination did not terminate")
		page, err := users.List(ctx, cursor, limit)
		require.NoError(t, err)
		all = append(all, page.Items...)
		if page.Next == nil {
			return all
		}
		cursor = *page.Next
	}
}

var errBoom = errors.New("boom")

// faultyKV fails selected operations with a storage error.
type faultyKV struct {
	types.KV
	failGet    bool
	failPut    bool
	failDelete bool
}

func (f *faultyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, types.NewStorageError("get", key, errBoom)
	}
	return f.KV.Get(ctx, key)
}

func (f *faultyKV) Put(ctx context.Context, key string, value []byte) error {
	if f.failPut {
		return types.NewStorageError("put", key, errBoom)
	}
	return f.KV.Put(ctx, key, value)
}

func (f *faultyKV) Delete(ctx context.Context, key string) (bool, error) {
	if f.failDelete {
		return false, types.NewStorageError("delete", key, errBoom)
	}
	return f.KV.Delete(ctx, key)
}

// recordingObserver captures ObserveOp calls.
type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveOp(collection, op string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ops = append(r.ops, collection+"."+op+":"+outcome)
}
