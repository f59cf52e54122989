package domain

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem is the instruction message.
	RoleSystem Role = "system"
	// RoleUser is an end-user message.
	RoleUser Role = "user"
	// RoleAssistant is a model-generated message.
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a chat completion request.
type Message struct {
	Role    Role
	Content string
}

// Turn is one entry of prior conversation history as callers supply it.
type Turn struct {
	IsBot bool
	Text  string
}

// ChatCompleter generates a completion for an ordered message list.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
