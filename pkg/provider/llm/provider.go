// Package llm defines the Provider interface for the language-model backends
// that generate NubaGuard's short conversational replies.
//
// Only blocking completions are needed: replies are a handful of words and
// are spoken as a whole, so there is no streaming surface.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is sent ahead of Messages with the "system" role.
	SystemPrompt string

	// Messages is the ordered conversation. The last entry is usually the
	// transcribed utterance with the "user" role.
	Messages []types.Message

	// Temperature controls randomness. Zero uses the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply. It must
	// return promptly when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() types.ModelCapabilities
}
