package llm

import (
	"context"

	"github.com/sesimlab/counselvoice/internal/provider"
)

// Provider is the interface chat-completion backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
