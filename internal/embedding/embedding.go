// Package embedding defines the text-embedding abstraction used by the
// semantic chunk indexer and retriever.
package embedding

import (
	"context"

	"github.com/sesimlab/counselvoice/internal/provider"
)

// Dimensions is the expected embedding vector size.
const Dimensions = 1536

// MaxBatchSize bounds how many texts one API call may carry.
const MaxBatchSize = 32

// Provider is the interface embedding backends must implement.
type Provider interface {
	provider.Provider

	// Embed returns one vector per input text, in input order. Inputs
	// larger than the provider's batch limit are split internally.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
