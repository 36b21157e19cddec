// Package adapter provides implementations for external AI provider integrations.
package adapter

import (
	"fmt"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// systemFoldTemplate folds a system instruction into the user prompt for
// models that reject system-role messages. The exact wording is fixed:
// downstream consumers and tests rely on the "System instruction:" prefix.
const systemFoldTemplate = "System instruction: %s\n\nUser query: %s"

// foldSystemIntoPrompt renders the fixed fold template.
func foldSystemIntoPrompt(system, prompt string) string {
	return fmt.Sprintf(systemFoldTemplate, system, prompt)
}

// conversation owns the history shared by every adapter and implements the
// history side of the Client interface. Adapters embed it and add only the
// vendor-specific payload translation.
type conversation struct {
	history *domain.History
}

func newConversation() conversation {
	return conversation{history: domain.NewHistory()}
}

// AddMessage appends a role-tagged message after validating the role.
func (c *conversation) AddMessage(role, content string) error {
	return c.history.Add(role, content)
}

// Context returns an independent snapshot of the history.
func (c *conversation) Context() []domain.Message {
	return c.history.Snapshot()
}

// SetContext replaces the history with an independent copy of messages.
func (c *conversation) SetContext(messages []domain.Message) {
	c.history.Replace(messages)
}

// ClearContext empties the history.
func (c *conversation) ClearContext() {
	c.history.Clear()
}

// beginTurn applies the shared pre-call contract to the history:
//
//  1. system given + model supports the system role: upsert the single
//     canonical system message (overwrite in place, else insert first).
//  2. system given + model lacks the system role: fold it into the prompt
//     text instead; no system entry ever enters the history.
//  3. prompt given (or produced by folding): append as a user message.
func (c *conversation) beginTurn(prompt, system string, supportsSystem bool) {
	if system != "" {
		if supportsSystem {
			c.history.UpsertSystem(system)
		} else {
			prompt = foldSystemIntoPrompt(system, prompt)
		}
	}
	if prompt != "" {
		c.history.Append(domain.RoleUser, prompt)
	}
}

// completeTurn records a successful assistant reply. Failed vendor calls
// never reach here, so no assistant turn is recorded for them.
func (c *conversation) completeTurn(reply string) {
	c.history.Append(domain.RoleAssistant, reply)
}
