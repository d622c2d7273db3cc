package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool result. Tool messages live only inside a run and are never persisted.
	RoleTool Role = "tool"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one entry of the conversation history.
type Message struct {
	ID        string     `json:"id" mapstructure:"id"`
	Role      Role       `json:"role" mapstructure:"role"`
	Content   string     `json:"content" mapstructure:"content"`
	CreatedAt time.Time  `json:"created_at" mapstructure:"created_at"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" mapstructure:"tool_calls"`
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty" mapstructure:"tool_call_id"`
	// Name is the tool name for tool messages.
	Name string `json:"name,omitempty" mapstructure:"name"`
}

// NewMessage builds a validated message with a fresh ID and timestamp.
func NewMessage(role Role, content string) (Message, error) {
	m := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the role and that content is not blank.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("message content must not be empty")
	}
	return nil
}

// HasPendingToolCalls reports whether the message asks for tool execution.
func (m Message) HasPendingToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Conversational reports whether the message belongs in persisted chat history.
func (m Message) Conversational() bool {
	return m.Role == RoleUser || m.Role == RoleAssistant
}

// PairedHistory returns a copy of history in which every tool call is answered
// and every tool message answers a call. Unanswered calls are dropped from their
// assistant message and orphan tool messages are removed. Chat APIs reject
// unpaired histories.
func PairedHistory(history []Message) []Message {
	calls := make(map[string]bool)
	answered := make(map[string]bool)
	for _, m := range history {
		for _, c := range m.ToolCalls {
			calls[c.ID] = true
		}
		if m.Role == RoleTool {
			answered[m.ToolCallID] = true
		}
	}

	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == RoleTool && !calls[m.ToolCallID] {
			continue
		}
		if len(m.ToolCalls) > 0 {
			kept := make([]ToolCall, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				if answered[c.ID] {
					kept = append(kept, c)
				}
			}
			if len(kept) == 0 {
				kept = nil
			}
			m.ToolCalls = kept
		}
		out = append(out, m)
	}
	return out
}
