package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/apexdraft/internal/sqlite"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

func TestOpenSQLite(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "db")

	kv, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer kv.Close()

	b, ok := kv.(*sqlite.Backend)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.DataDir, sqlite.DBFileName), b.Path())
	_, isCAS := kv.(types.CompareAndSwapper)
	assert.True(t, isCAS)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := types.DefaultConfig()
	cfg.Backend = types.BackendRedis
	cfg.RedisAddr = mr.Addr()

	kv, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer kv.Close()

	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	assert.True(t, mr.Exists(types.DefaultRedisNamespace+"k"))
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.Config
		want error
	}{
		{name: "empty backend", cfg: types.Config{}, want: types.ErrBackendEmpty},
		{name: "unknown backend", cfg: types.Config{Backend: "dynamo"}, want: types.ErrBackendUnknown},
		{name: "redis without addr", cfg: types.Config{Backend: types.BackendRedis}, want: types.ErrRedisAddrEmpty},
		{name: "postgres without dsn", cfg: types.Config{Backend: types.BackendPostgres}, want: types.ErrPostgresDSNEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Open(context.Background(), types.Config{Backend: types.BackendSQLite})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.DataDir = "/tmp/x"
	assert.Equal(t, "sqlite /tmp/x", Describe(cfg))

	cfg.Backend = types.BackendRedis
	cfg.RedisAddr = "localhost:6379"
	assert.Equal(t, `redis localhost:6379/0 namespace "apexdraft:"`, Describe(cfg))

	cfg.Backend = types.BackendPostgres
	cfg.PostgresDSN = "postgres://user:secret@db/apexdraft"
	assert.NotContains(t, Describe(cfg), "secret")
}
