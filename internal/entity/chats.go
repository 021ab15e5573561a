package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Chats is the chat boards collection.
type Chats struct {
	*Collection[types.Chat]
}

// NewChats builds the chats collection over kv.
func NewChats(kv types.KV, seed []types.Chat, opts Options) *Chats {
	return &Chats{
		Collection: NewCollection(types.ChatsCollection, kv,
			func(c types.Chat) string { return c.ID }, seed, opts),
	}
}

// Add creates an empty board with a generated id. The title is trimmed and
// must not be blank.
func (c *Chats) Add(ctx context.Context, title string) (types.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Chat{}, fmt.Errorf("%w: title required", types.ErrValidation)
	}
	return c.Create(ctx, types.Chat{ID: c.opts.NewID(), Title: title, Messages: []types.ChatMessage{}})
}

// Messages returns the messages of a board in posting order.
func (c *Chats) Messages(ctx context.Context, chatID string) ([]types.ChatMessage, error) {
	chat, err := c.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Messages == nil {
		return []types.ChatMessage{}, nil
	}
	return chat.Messages, nil
}

// AppendMessage posts a message to a board.
// Returns ErrNotFound for an unknown board and ErrValidation for blank input.
func (c *Chats) AppendMessage(ctx context.Context, chatID, userID, text string) (types.ChatMessage, error) {
	if userID == "" {
		return types.ChatMessage{}, fmt.Errorf("%w: userId required", types.ErrValidation)
	}
	var msg types.ChatMessage
	_, err := c.Update(ctx, chatID, func(chat *types.Chat) error {
		m, err := chat.AppendMessage(c.opts.NewID(), userID, text, c.opts.Now())
		if err != nil {
			return fmt.Errorf("%w: text required", err)
		}
		msg = m
		return nil
	})
	if err != nil {
		return types.ChatMessage{}, err
	}
	return msg, nil
}
