package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Users is the users collection.
type Users struct {
	*Collection[types.User]
}

// NewUsers builds the users collection over kv.
func NewUsers(kv types.KV, seed []types.User, opts Options) *Users {
	return &Users{
		Collection: NewCollection(types.UsersCollection, kv,
			func(u types.User) string { return u.ID }, seed, opts),
	}
}

// Add creates a user with a generated id. The name is trimmed and must not
// be blank.
func (u *Users) Add(ctx context.Context, name string) (types.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.User{}, fmt.Errorf("%w: name required", types.ErrValidation)
	}
	return u.Create(ctx, types.User{ID: u.opts.NewID(), Name: name})
}
