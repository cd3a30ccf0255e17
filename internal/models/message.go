package models

import (
	"slices"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational message. Messages are never mutated
// after creation; a session only ever appends new ones.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is the role/content pair sent to the completion backend.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh random id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// CloneMessages returns a copy of msgs that shares no backing array with it.
// A nil or empty input yields an empty, non-nil slice.
func CloneMessages(msgs []Message) []Message {
	out := slices.Clone(msgs)
	if out == nil {
		out = []Message{}
	}
	return out
}

// Turns strips ids, keeping conversation order.
func Turns(msgs []Message) []Turn {
	turns := make([]Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = Turn{Role: m.Role, Content: m.Content}
	}
	return turns
}
