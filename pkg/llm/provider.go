package llm

import (
	"context"
	"encoding/json"
)

// Provider generates structured content from a prompt.
type Provider interface {
	// Generate sends req to the backend. When req.Schema is set the returned
	// Content is JSON that has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

type Request struct {
	System   string
	Messages []Message

	// Schema, when set, asks the backend for JSON output of this shape.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema definition.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// UserPrompt builds a single-turn request.
func UserPrompt(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}
