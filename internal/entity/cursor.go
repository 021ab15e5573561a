package entity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// cursorToken is the decoded form of a page cursor. Offset is the index
// position the next page starts at; After is the last id of the page that
// produced the cursor, used to re-anchor when the index shifted.
type cursorToken struct {
	Collection string `json:"c"`
	Offset     int    `json:"o"`
	After      string `json:"a"`
}

func encodeCursor(collection string, offset int, after string) string {
	data, _ := json.Marshal(cursorToken{Collection: collection, Offset: offset, After: after})
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(collection, s string) (cursorToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursorToken{}, fmt.Errorf("%w: not base64url", types.ErrInvalidCursor)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var tok cursorToken
	if err := dec.Decode(&tok); err != nil {
		return cursorToken{}, fmt.Errorf("%w: malformed token", types.ErrInvalidCursor)
	}
	switch {
	case tok.Collection != collection:
		return cursorToken{}, fmt.Errorf("%w: cursor belongs to %q", types.ErrInvalidCursor, tok.Collection)
	case tok.Offset < 1:
		return cursorToken{}, fmt.Errorf("%w: offset out of range", types.ErrInvalidCursor)
	case tok.After == "":
		return cursorToken{}, fmt.Errorf("%w: missing anchor", types.ErrInvalidCursor)
	}
	return tok, nil
}

// resolve maps the token onto the current index and returns the start
// offset of the next page. The fast path is an unchanged index. If earlier
// ids were inserted or removed the anchor id is looked up instead, and if the
// anchor itself was deleted the raw offset is used, clamped to the end.
func (t cursorToken) resolve(ids []string) int {
	if t.Offset <= len(ids) && ids[t.Offset-1] == t.After {
		return t.Offset
	}
	for i, id := range ids {
		if id == t.After {
			return i + 1
		}
	}
	return min(t.Offset, len(ids))
}
