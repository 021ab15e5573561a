// Package backend opens the KV store selected by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/apexdraft/internal/postgres"
	"github.com/mesh-intelligence/apexdraft/internal/redis"
	"github.com/mesh-intelligence/apexdraft/internal/sqlite"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Open validates cfg and connects to its backend. The caller owns the
// returned store and must Close it.
//
// Example:
//
//	kv, err := backend.Open(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".apexdraft-db",
//	})
//	defer kv.Close()
func Open(ctx context.Context, cfg types.Config) (types.KV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		kv  types.KV
		err error
	)
	switch cfg.Backend {
	case types.BackendSQLite:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite backend requires data_dir")
		}
		kv, err = openSQLite(cfg.DataDir)
	case types.BackendRedis:
		kv, err = openRedis(ctx, cfg)
	case types.BackendPostgres:
		kv, err = openPostgres(ctx, cfg.PostgresDSN)
	default:
		err = fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return kv, nil
}

func openSQLite(dataDir string) (types.KV, error) {
	b, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func openRedis(ctx context.Context, cfg types.Config) (types.KV, error) {
	s, err := redis.Open(ctx, redis.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		Namespace: cfg.RedisNamespace,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (types.KV, error) {
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Describe returns a short, credential-free description of where cfg stores data.
func Describe(cfg types.Config) string {
	switch cfg.Backend {
	case types.BackendSQLite:
		return "sqlite " + cfg.DataDir
	case types.BackendRedis:
		return fmt.Sprintf("redis %s/%d namespace %q", cfg.RedisAddr, cfg.RedisDB, cfg.RedisNamespace)
	case types.BackendPostgres:
		return "postgres"
	default:
		return cfg.Backend
	}
}
