package types

import (
	"context"
	"errors"
	"fmt"
)

// KV is the key-value primitive the entity layer is built on. Keys are
// opaque strings; values are opaque bytes (JSON in practice).
type KV interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. It reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// List returns every key starting with prefix in ascending byte order.
	// An empty prefix lists the whole namespace.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// CompareAndSwapper is implemented by backends that can perform an atomic
// conditional write. The entity layer uses it to guard read-modify-write
// cycles on indexes and records.
type CompareAndSwapper interface {
	// CompareAndSwap stores next under key only if the current value equals
	// prev. A nil prev requires the key to be absent. It reports whether the
	// write happened.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
}

// ErrKeyNotFound is returned by KV.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// StorageError wraps a failure of the underlying KV backend.
type StorageError struct {
	Op  string // get, put, delete, list, cas
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError returns nil when err is nil, otherwise a *StorageError.
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
