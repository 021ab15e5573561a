// Package kvtest provides a conformance suite every types.KV backend must pass.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) types.KV

// Run executes the conformance suite against stores produced by newKV.
func Run(t *testing.T, newKV Factory) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		kv := newKV(t)
		_, err := kv.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		require.NoError(t, kv.Put(ctx, "users:rec:u1", []byte(`{"id":"u1"}`)))
		got, err := kv.Get(ctx, "users:rec:u1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"u1"}`, string(got))
	})

	t.Run("put overwrites", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		require.NoError(t, kv.Put(ctx, "k", []byte("one")))
		require.NoError(t, kv.Put(ctx, "k", []byte("two")))
		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("delete reports existence", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		require.NoError(t, kv.Put(ctx, "k", []byte("v")))

		existed, err := kv.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = kv.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, existed)

		_, err = kv.Get(ctx, "k")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("list by prefix is sorted and scoped", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		for _, k := range []string{"users:rec:b", "users:rec:a", "users:index", "chats:rec:a", "users_x", "users:rec:*"} {
			require.NoError(t, kv.Put(ctx, k, []byte("1")))
		}

		keys, err := kv.List(ctx, "users:rec:")
		require.NoError(t, err)
		assert.Equal(t, []string{"users:rec:*", "users:rec:a", "users:rec:b"}, keys)

		keys, err = kv.List(ctx, "users:")
		require.NoError(t, err)
		assert.Equal(t, []string{"users:index", "users:rec:*", "users:rec:a", "users:rec:b"}, keys)

		keys, err = kv.List(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("list treats glob and like characters literally", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		for _, k := range []string{"a%b:1", "a_b:1", "axb:1", "a*b:1", "a?b:1"} {
			require.NoError(t, kv.Put(ctx, k, []byte("1")))
		}
		for _, prefix := range []string{"a%b:", "a_b:", "a*b:", "a?b:"} {
			keys, err := kv.List(ctx, prefix)
			require.NoError(t, err)
			assert.Equal(t, []string{prefix + "1"}, keys, "prefix %q", prefix)
		}
	})

	t.Run("list empty prefix returns everything", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		require.NoError(t, kv.Put(ctx, "b", []byte("1")))
		require.NoError(t, kv.Put(ctx, "a", []byte("1")))
		keys, err := kv.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys)
	})

	t.Run("compare and swap", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		cas, ok := kv.(types.CompareAndSwapper)
		if !ok {
			t.Skip("backend does not implement CompareAndSwapper")
		}

		swapped, err := cas.CompareAndSwap(ctx, "k", nil, []byte("v1"))
		require.NoError(t, err)
		assert.True(t, swapped, "create when absent")

		swapped, err = cas.CompareAndSwap(ctx, "k", nil, []byte("v2"))
		require.NoError(t, err)
		assert.False(t, swapped, "create must fail when present")

		swapped, err = cas.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v2"))
		require.NoError(t, err)
		assert.False(t, swapped, "stale prev must fail")

		swapped, err = cas.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"))
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))

		swapped, err = cas.CompareAndSwap(ctx, "missing", []byte("v1"), []byte("v2"))
		require.NoError(t, err)
		assert.False(t, swapped, "update of a missing key must fail")
	})

	t.Run("compare and swap admits one winner", func(t *testing.T) {
		ctx := context.Background()
		kv := newKV(t)
		cas, ok := kv.(types.CompareAndSwapper)
		if !ok {
			t.Skip("backend does not implement CompareAndSwapper")
		}
		require.NoError(t, kv.Put(ctx, "k", []byte("0")))

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := cas.CompareAndSwap(ctx, "k", []byte("0"), []byte(fmt.Sprint(i+1)))
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
