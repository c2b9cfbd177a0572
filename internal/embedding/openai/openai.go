// Package openai implements embedding.Provider against the OpenAI
// embeddings API (or any compatible endpoint).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/config"
	"github.com/sesimlab/counselvoice/internal/embedding"
)

// ProviderName is the registered name for the OpenAI embedding provider.
const ProviderName = "openai"

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// Provider implements embedding.Provider using the embeddings endpoint.
type Provider struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewProvider creates an OpenAI embedding provider.
func NewProvider(cfg config.EmbeddingConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedding.Dimensions
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > embedding.MaxBatchSize {
		cfg.BatchSize = embedding.MaxBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the provider has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.cfg.APIKey != ""
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed returns one vector per input text, batching calls under the
// configured batch size.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (p *Provider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: p.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.ExternalServiceError("openai-embeddings", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalServiceError("openai-embeddings", err)
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("embedding: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, apperrors.ExternalServiceError("openai-embeddings", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if len(out.Data) != len(texts) {
		return nil, apperrors.ExternalServiceError("openai-embeddings",
			fmt.Errorf("expected %d vectors, got %d", len(texts), len(out.Data)))
	}

	// The API may return entries out of order; index is authoritative.
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) != p.cfg.Dimensions {
			return nil, apperrors.ExternalServiceError("openai-embeddings",
				fmt.Errorf("expected %d dimensions, got %d", p.cfg.Dimensions, len(d.Embedding)))
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

var _ embedding.Provider = (*Provider)(nil)
