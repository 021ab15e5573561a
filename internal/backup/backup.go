// Package backup dumps and restores KV entries as JSONL, one
// {"key":...,"value":...} object per line.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Entry is one line of a backup file. Value holds the stored JSON verbatim.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Export writes every key under prefix to path and returns the number of
// entries written. Keys deleted while the export runs are skipped.
func Export(ctx context.Context, kv types.KV, prefix, path string) (int, error) {
	keys, err := kv.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	records := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		value, err := kv.Get(ctx, key)
		if errors.Is(err, types.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !json.Valid(value) {
			return 0, fmt.Errorf("export %q: value is not JSON", key)
		}
		line, err := json.Marshal(Entry{Key: key, Value: compact(value)})
		if err != nil {
			return 0, fmt.Errorf("encode %q: %w", key, err)
		}
		records = append(records, line)
	}

	if err := writeJSONL(path, records); err != nil {
		return 0, fmt.Errorf("export to %s: %w", path, err)
	}
	return len(records), nil
}

// Import writes every entry in path to kv and returns the number written.
// Malformed lines and entries without a key are skipped. Records are written
// before collection indexes so an index never names a missing record.
func Import(ctx context.Context, kv types.KV, path string) (int, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.Key == "" || len(e.Value) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return boolCmp(isIndexKey(a.Key), isIndexKey(b.Key))
	})

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := kv.Put(ctx, e.Key, e.Value); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

func isIndexKey(key string) bool { return strings.HasSuffix(key, ":index") }

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// compact keeps each entry on a single line.
func compact(value []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return value
	}
	return buf.Bytes()
}
