package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	base := errors.New("disk full")

	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewStorageError("put", "k", nil))
	})

	t.Run("wraps and unwraps", func(t *testing.T) {
		err := NewStorageError("put", "users:index", base)
		assert.ErrorIs(t, err, base)
		assert.True(t, IsStorageError(err))
		assert.Equal(t, `storage put "users:index": disk full`, err.Error())
	})

	t.Run("detected through wrapping", func(t *testing.T) {
		err := fmt.Errorf("create user: %w", NewStorageError("list", "", base))
		assert.True(t, IsStorageError(err))
		assert.Contains(t, err.Error(), "storage list: disk full")
	})

	t.Run("plain errors are not storage errors", func(t *testing.T) {
		assert.False(t, IsStorageError(ErrNotFound))
	})
}
