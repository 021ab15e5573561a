package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// maxCASAttempts bounds how often a conditional write is re-applied after
// losing a race before the operation gives up with ErrConflict.
const maxCASAttempts = 8

// errUnchanged tells a rewrite loop that the mutation is a no-op.
var errUnchanged = errors.New("unchanged")

// index is the stored insertion-ordered id list of a collection.
type index struct {
	Version int64    `json:"version"`
	IDs     []string `json:"ids"`
}

func (c *Collection[T]) indexKey() string { return c.name + ":index" }

func (c *Collection[T]) recordKey(id string) string { return c.name + ":rec:" + id }

// loadIndex reads the index. exists is false when the collection has never
// been seeded or written; raw holds the stored bytes for a conditional write.
func (c *Collection[T]) loadIndex(ctx context.Context) (idx index, raw []byte, exists bool, err error) {
	raw, err = c.kv.Get(ctx, c.indexKey())
	if errors.Is(err, types.ErrKeyNotFound) {
		return index{}, nil, false, nil
	}
	if err != nil {
		return index{}, nil, false, err
	}
	if err := json.Unmarshal(raw, &idx); err != nil {
		return index{}, nil, false, types.NewStorageError("decode", c.indexKey(), err)
	}
	return idx, raw, true, nil
}

// updateIndex applies fn to the current id list and writes the result.
// fn may return errUnchanged to skip the write.
func (c *Collection[T]) updateIndex(ctx context.Context, fn func(ids []string) ([]string, error)) error {
	key := c.indexKey()
	for attempt := 1; ; attempt++ {
		idx, raw, exists, err := c.loadIndex(ctx)
		if err != nil {
			return err
		}
		ids, err := fn(slices.Clone(idx.IDs))
		if errors.Is(err, errUnchanged) {
			return nil
		}
		if err != nil {
			return err
		}
		if ids == nil {
			ids = []string{}
		}
		data, err := json.Marshal(index{Version: idx.Version + 1, IDs: ids})
		if err != nil {
			return fmt.Errorf("encode index: %w", err)
		}

		if c.cas == nil {
			return c.kv.Put(ctx, key, data)
		}
		var prev []byte
		if exists {
			prev = raw
		}
		ok, err := c.cas.CompareAndSwap(ctx, key, prev, data)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt >= maxCASAttempts {
			return fmt.Errorf("%w: concurrent update of %s", types.ErrConflict, key)
		}
		c.log.Debug("index write lost race, retrying", "collection", c.name, "attempt", attempt)
	}
}
