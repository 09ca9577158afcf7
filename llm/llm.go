// Package llm defines the completion-stream contract consumed by the chat
// reconciler, and an OpenAI-compatible backend implementation.
package llm

import (
	"context"

	"github.com/pkg/errors"
)

// ErrMissingCredential indicates the backend was wired without an API key.
var ErrMissingCredential = errors.New("api key not configured")

const (
	UserRole      = "user"
	AssistantRole = "assistant"
	SystemRole    = "system"
)

type Message struct {
	Role    string
	Content string
}

type CreateTextGenerationRequest struct {
	Model       string
	Messages    []*Message
	MaxTokens   int
	Temperature float32

	// If set, the backend is asked to ground the response with web search.
	SearchMode bool
}

type StreamEvent struct {
	Token        string
	FinishReason string
}

// Stream is a lazy, finite, non-restartable sequence of fragments.
// Recv returns io.EOF when the stream ends normally.
type Stream interface {
	Recv() (*StreamEvent, error)
	Close()
}

type Client interface {
	CreateTextGeneration(context.Context, *CreateTextGenerationRequest) (Stream, error)
}
