package entity

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// SeedData holds the example records written to empty collections.
type SeedData struct {
	Users []types.User `yaml:"users"`
	Chats []types.Chat `yaml:"chats"`
}

// defaultSeedTS is 2025-01-01T00:00:00Z in epoch milliseconds.
const defaultSeedTS = 1735689600000

// DefaultSeed returns the built-in example records.
func DefaultSeed() SeedData {
	return SeedData{
		Users: []types.User{
			{ID: "u1", Name: "User A"},
			{ID: "u2", Name: "User B"},
			{ID: "u3", Name: "User C"},
		},
		Chats: []types.Chat{
			{
				ID:    "c1",
				Title: "General",
				Messages: []types.ChatMessage{
					{ID: "m1", ChatID: "c1", UserID: "u1", Text: "Hello", TS: defaultSeedTS},
				},
			},
		},
	}
}

// LoadSeedFile reads seed records from a YAML file. Records need non-empty,
// unique ids within their collection. Message chat ids default to the
// enclosing chat.
func LoadSeedFile(path string) (SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedData{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedData{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := seed.validate(); err != nil {
		return SeedData{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

func (s *SeedData) validate() error {
	var userIDs []string
	for _, u := range s.Users {
		if u.ID == "" || slices.Contains(userIDs, u.ID) {
			return fmt.Errorf("%w: user id %q missing or duplicated", types.ErrValidation, u.ID)
		}
		userIDs = append(userIDs, u.ID)
	}
	var chatIDs []string
	for i := range s.Chats {
		c := &s.Chats[i]
		if c.ID == "" || slices.Contains(chatIDs, c.ID) {
			return fmt.Errorf("%w: chat id %q missing or duplicated", types.ErrValidation, c.ID)
		}
		chatIDs = append(chatIDs, c.ID)
		if c.Messages == nil {
			c.Messages = []types.ChatMessage{}
		}
		for j := range c.Messages {
			if c.Messages[j].ChatID == "" {
				c.Messages[j].ChatID = c.ID
			}
		}
	}
	return nil
}
