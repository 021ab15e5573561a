package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

func TestCursorRoundTrip(t *testing.T) {
	s := encodeCursor("users", 20, "u20")
	assert.NotContains(t, s, "=")

	tok, err := decodeCursor("users", s)
	require.NoError(t, err)
	assert.Equal(t, cursorToken{Collection: "users", Offset: 20, After: "u20"}, tok)
}

func TestDecodeCursorRejects(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "%%%"},
		{name: "padded base64", cursor: "eyJjIjoidXNlcnMifQ=="},
		{name: "unknown field", cursor: "eyJjIjoidXNlcnMiLCJvIjoxLCJhIjoidTEiLCJ4IjoxfQ"},
		{name: "other collection", cursor: encodeCursor("chats", 1, "c1")},
		{name: "zero offset", cursor: encodeCursor("users", 0, "u1")},
		{name: "missing anchor", cursor: encodeCursor("users", 1, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCursor("users", tt.cursor)
			assert.ErrorIs(t, err, types.ErrInvalidCursor)
		})
	}
}

func TestCursorResolve(t *testing.T) {
	tests := []struct {
		name string
		tok  cursorToken
		ids  []string
		want int
	}{
		{name: "unchanged index", tok: cursorToken{Offset: 2, After: "b"}, ids: []string{"a", "b", "c"}, want: 2},
		{name: "earlier id removed", tok: cursorToken{Offset: 2, After: "b"}, ids: []string{"b", "c"}, want: 1},
		{name: "earlier id inserted", tok: cursorToken{Offset: 2, After: "b"}, ids: []string{"x", "a", "b", "c"}, want: 3},
		{name: "anchor removed", tok: cursorToken{Offset: 2, After: "b"}, ids: []string{"a", "c", "d"}, want: 2},
		{name: "anchor removed past end", tok: cursorToken{Offset: 5, After: "e"}, ids: []string{"a", "b"}, want: 2},
		{name: "empty index", tok: cursorToken{Offset: 3, After: "c"}, ids: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tok.resolve(tt.ids))
		})
	}
}
