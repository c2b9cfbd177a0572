// Package voxtral implements the stt.Provider interface against Mistral's
// synchronous audio transcription endpoint. Segment timestamps arrive as
// string-encoded seconds and speakers as string labels.
package voxtral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// ProviderName is the registered name for the Voxtral adapter.
const ProviderName = "voxtral"

const (
	defaultBaseURL = "https://api.mistral.ai"
	defaultModel   = "voxtral-mini-latest"
)

// Config holds configuration for the Voxtral adapter.
type Config struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// Provider implements stt.Provider using Mistral's synchronous API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a Voxtral adapter.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Factory returns a provider.Factory creating Voxtral adapters from a
// generic config map.
func Factory() provider.Factory[stt.Provider] {
	return func(cfg map[string]any) (stt.Provider, error) {
		c := Config{}
		if v, ok := cfg["api_key"].(string); ok {
			c.APIKey = v
		}
		if v, ok := cfg["base_url"].(string); ok {
			c.BaseURL = v
		}
		if v, ok := cfg["model"].(string); ok {
			c.Model = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			c.Timeout = v
		}
		if c.APIKey == "" {
			return nil, apperrors.Configuration("voxtral api key")
		}
		return NewProvider(c), nil
	}
}

// Name returns the adapter name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the adapter has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.cfg.APIKey != "" }

type transcriptionResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

// segment timestamps are string-encoded seconds ("12.34").
type segment struct {
	Text    string `json:"text"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Speaker string `json:"speaker"`
}

// Transcribe posts the audio as multipart form data and normalizes the
// synchronous segment list.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*transcript.Result, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("voxtral: read audio: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("voxtral: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("voxtral: write audio: %w", err)
	}
	_ = writer.WriteField("model", p.cfg.Model)
	_ = writer.WriteField("timestamp_granularities", "segment")
	_ = writer.WriteField("diarize", "true")
	if req.LanguageCode != "" {
		_ = writer.WriteField("language", req.LanguageCode)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("voxtral: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.ExternalServiceError(ProviderName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalServiceError(ProviderName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Vendor(ProviderName, fmt.Sprintf("status %d: %s", resp.StatusCode, string(data)))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("voxtral: decode response: %w", err)
	}

	return normalize(&out, req.LanguageCode)
}

// normalize converts segments into the canonical result, parsing the
// string-encoded second timestamps. Segments without a speaker label fall
// back to a single "0" speaker.
func normalize(out *transcriptionResponse, language string) (*transcript.Result, error) {
	b := transcript.NewBuilder()
	if out.Language != "" {
		b.SetLanguage(out.Language)
	} else {
		b.SetLanguage(language)
	}

	for _, seg := range out.Segments {
		start := parseSeconds(seg.Start)
		end := parseSeconds(seg.End)
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "0"
		}
		b.AddUtterance(speaker, seg.Text, start, end)
	}

	result, err := b.Result(out.Text)
	if err != nil {
		return nil, apperrors.Normalization(ProviderName).WithCause(err)
	}
	return result, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

var _ stt.Provider = (*Provider)(nil)
