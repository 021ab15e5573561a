package types

import (
	"strings"
	"time"
)

// Chat is a message board. Messages are stored inline with the board record.
type Chat struct {
	ID       string        `json:"id" yaml:"id"`
	Title    string        `json:"title" yaml:"title"`
	Messages []ChatMessage `json:"messages" yaml:"messages"`
}

// ChatSummary is the board header returned when a chat is created.
type ChatSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChatMessage is a single post on a chat board. TS is epoch milliseconds.
type ChatMessage struct {
	ID     string `json:"id" yaml:"id"`
	ChatID string `json:"chatId" yaml:"chat_id"`
	UserID string `json:"userId" yaml:"user_id"`
	Text   string `json:"text" yaml:"text"`
	TS     int64  `json:"ts" yaml:"ts"`
}

// Summary returns the board header without messages.
func (c *Chat) Summary() ChatSummary {
	return ChatSummary{ID: c.ID, Title: c.Title}
}

// AppendMessage validates and appends a message to the board.
// Returns ErrValidation if the text is blank.
func (c *Chat) AppendMessage(id, userID, text string, at time.Time) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrValidation
	}
	m := ChatMessage{
		ID:     id,
		ChatID: c.ID,
		UserID: userID,
		Text:   text,
		TS:     at.UnixMilli(),
	}
	c.Messages = append(c.Messages, m)
	return m, nil
}
