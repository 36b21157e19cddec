// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

import (
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole normalizes a role string (case-insensitive) to a Role.
// Returns an InvalidRoleError for anything outside the valid set.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", &InvalidRoleError{Role: s}
	}
}

// InvalidRoleError is returned when a message role is outside the valid set.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q, must be one of: system, user, assistant", e.Role)
}

// IsInvalidRoleError checks if an error is an InvalidRoleError.
func IsInvalidRoleError(err error) bool {
	_, ok := err.(*InvalidRoleError)
	return ok
}

// Message is a single role-tagged entry in a conversation transcript.
type Message struct {
	// Role is the message author: system, user, or assistant.
	Role Role `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// History is the ordered transcript of a conversation. Insertion order is
// chronological and meaningful. A History has exactly one owner at a time;
// it carries no locking of its own (see SessionStore for the shared case).
type History struct {
	messages []Message
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{messages: make([]Message, 0)}
}

// Add validates the role (case-insensitive) and appends a message.
// On an invalid role the history is left unchanged.
func (h *History) Add(role, content string) error {
	r, err := ParseRole(role)
	if err != nil {
		return err
	}
	h.messages = append(h.messages, Message{Role: r, Content: content})
	return nil
}

// Append adds a message with an already-validated Role. It bypasses string
// parsing and is intended for internal callers using the Role constants.
func (h *History) Append(role Role, content string) {
	h.messages = append(h.messages, Message{Role: role, Content: content})
}

// Snapshot returns an independent copy of the transcript. Mutating the
// returned slice never affects the history, and vice versa.
func (h *History) Snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Replace swaps the entire transcript for an independent copy of messages.
func (h *History) Replace(messages []Message) {
	out := make([]Message, len(messages))
	copy(out, messages)
	h.messages = out
}

// Clear empties the transcript.
func (h *History) Clear() {
	h.messages = h.messages[:0]
}

// Len returns the number of messages in the transcript.
func (h *History) Len() int {
	return len(h.messages)
}

// UpsertSystem sets the single canonical system message. If a system
// message already exists anywhere in the transcript, its content is
// overwritten in place; otherwise one is inserted at position 0.
func (h *History) UpsertSystem(content string) {
	for i := range h.messages {
		if h.messages[i].Role == RoleSystem {
			h.messages[i].Content = content
			return
		}
	}
	h.messages = append([]Message{{Role: RoleSystem, Content: content}}, h.messages...)
}
