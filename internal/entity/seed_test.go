package entity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultSeed(t *testing.T) {
	seed := DefaultSeed()
	assert.Equal(t, []string{"User A", "User B", "User C"}, userNames(seed.Users))
	require.Len(t, seed.Chats, 1)
	assert.Equal(t, "General", seed.Chats[0].Title)
	assert.Equal(t, "Hello", seed.Chats[0].Messages[0].Text)

	// Callers may mutate the returned value.
	seed.Users[0].Name = "changed"
	assert.Equal(t, "User A", DefaultSeed().Users[0].Name)
}

func TestLoadSeedFile(t *testing.T) {
	path := writeSeed(t, `
users:
  - id: d1
    name: Max
  - id: d2
    name: Lewis
chats:
  - id: paddock
    title: Paddock
    messages:
      - id: m1
        user_id: d1
        text: Box box
        ts: 1700000000000
  - id: empty
    title: Empty
`)
	seed, err := LoadSeedFile(path)
	require.NoError(t, err)

	assert.Equal(t, []types.User{{ID: "d1", Name: "Max"}, {ID: "d2", Name: "Lewis"}}, seed.Users)
	require.Len(t, seed.Chats, 2)
	assert.Equal(t, types.ChatMessage{ID: "m1", ChatID: "paddock", UserID: "d1", Text: "Box box", TS: 1700000000000},
		seed.Chats[0].Messages[0])
	assert.NotNil(t, seed.Chats[1].Messages)
	assert.Empty(t, seed.Chats[1].Messages)
}

func TestLoadSeedFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not yaml", body: "users: [\n"},
		{name: "user without id", body: "users:\n  - name: Max\n"},
		{name: "duplicate user", body: "users:\n  - id: a\n  - id: a\n"},
		{name: "duplicate chat", body: "chats:\n  - id: c\n  - id: c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeedFile(writeSeed(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
