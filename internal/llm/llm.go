package llm

import (
	"context"
	"errors"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool declares a capability offered to the model. Kinds a provider does not
// support are filtered out before dispatch rather than causing failure.
type Tool struct {
	Type string `json:"type"`
}

// ChunkHandler receives one streamed fragment. The client waits for it to
// return before requesting the next fragment, so a slow consumer applies
// back-pressure to the stream.
type ChunkHandler func(chunk string)

// Client abstracts chat-style LLM providers.
//
// When onChunk is nil the call is non-streaming and returns the complete text
// atomically. When onChunk is supplied the call streams: onChunk is invoked
// once per fragment in arrival order and the returned string is the full
// concatenation of all fragments.
type Client interface {
	Call(ctx context.Context, messages []Message, tools []Tool, onChunk ChunkHandler) (string, error)
}

// ErrInvalidResponse is returned when the provider replies without usable content.
var ErrInvalidResponse = errors.New("invalid LLM response")

// System builds a system-role message.
func System(content string) Message {
	return Message{Role: "system", Content: content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: "user", Content: content}
}
