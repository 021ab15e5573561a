package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/apexdraft/internal/backend"
	"github.com/mesh-intelligence/apexdraft/internal/entity"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// store bundles an open backend with the collections built on it.
type store struct {
	configDir string
	cfg       types.Config
	kv        types.KV
	log       *slog.Logger
	users     *entity.Users
	chats     *entity.Chats
}

// openStore loads the configuration, opens the backend and builds the
// collections with their seed data. The caller must Close the store.
func openStore(ctx context.Context, cmd *cobra.Command, flags *rootFlags, observer entity.OpObserver) (*store, error) {
	lc, err := loadConfig(flags, cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg := lc.cfg

	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	seed := entity.DefaultSeed()
	if cfg.SeedFile != "" {
		if seed, err = entity.LoadSeedFile(cfg.SeedFile); err != nil {
			return nil, err
		}
	}

	kv, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, sysError(fmt.Errorf("open %s backend: %w", cfg.Backend, err))
	}

	opts := entity.Options{
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
		Logger:      log,
		Observer:    observer,
	}
	return &store{
		configDir: lc.configDir,
		cfg:       cfg,
		kv:        kv,
		log:       log,
		users:     entity.NewUsers(kv, seed.Users, opts),
		chats:     entity.NewChats(kv, seed.Chats, opts),
	}, nil
}

// Close releases the backend.
func (s *store) Close() error { return s.kv.Close() }

// ensureSeed seeds both collections.
func (s *store) ensureSeed(ctx context.Context) error {
	if err := s.users.EnsureSeed(ctx); err != nil {
		return err
	}
	return s.chats.EnsureSeed(ctx)
}

// collectionNames lists the collections the CLI can address.
var collectionNames = types.StandardCollectionNames

// commandError classifies err for the exit code: storage failures are
// system errors, everything else is the user's.
func commandError(err error) error {
	if err == nil {
		return nil
	}
	if types.IsStorageError(err) || errors.Is(err, context.DeadlineExceeded) {
		return sysError(err)
	}
	return err
}
