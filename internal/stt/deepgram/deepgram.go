// Package deepgram implements the stt.Provider interface against Deepgram's
// synchronous pre-recorded API. The response nests channels and
// alternatives; diarization arrives as integer speaker tags on word-level
// tokens with float-second timestamps.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// ProviderName is the registered name for the Deepgram adapter.
const ProviderName = "deepgram"

const (
	defaultBaseURL = "https://api.deepgram.com"
	defaultModel   = "nova-2"
)

// Config holds configuration for the Deepgram adapter.
type Config struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// Provider implements stt.Provider using Deepgram's synchronous API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a Deepgram adapter.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		// Synchronous vendor; long sessions take minutes to process.
		cfg.Timeout = 30 * time.Minute
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Factory returns a provider.Factory creating Deepgram adapters from a
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
			return nil, apperrors.Configuration("deepgram api key")
		}
		return NewProvider(c), nil
	}
}

// Name returns the adapter name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the adapter has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.cfg.APIKey != "" }

type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []word `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// word timestamps are float seconds; speaker is an integer tag.
type word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        int     `json:"speaker"`
}

// Transcribe posts the audio bytes and normalizes the synchronous response.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*transcript.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("deepgram: open audio: %w", err)
	}
	defer f.Close()

	language := req.LanguageCode
	if language == "" {
		language = "ko"
	}

	q := url.Values{}
	q.Set("model", p.cfg.Model)
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("language", language)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/listen?"+q.Encode(), f)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

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

	var out listenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %w", err)
	}

	return normalize(&out, language)
}

// normalize flattens the first channel's first alternative into word-level
// builder feeds. Deepgram already punctuates words, so punctuated_word is
// preferred over the raw token.
func normalize(out *listenResponse, language string) (*transcript.Result, error) {
	b := transcript.NewBuilder()
	b.SetLanguage(language)

	fullTranscript := ""
	if len(out.Results.Channels) > 0 && len(out.Results.Channels[0].Alternatives) > 0 {
		alt := out.Results.Channels[0].Alternatives[0]
		fullTranscript = alt.Transcript
		for _, w := range alt.Words {
			text := w.PunctuatedWord
			if text == "" {
				text = w.Word
			}
			b.AddWord(strconv.Itoa(w.Speaker), text, w.Start, w.End)
		}
	}

	result, err := b.Result(fullTranscript)
	if err != nil {
		return nil, apperrors.Normalization(ProviderName).WithCause(err)
	}
	if out.Metadata.Duration > 0 {
		result.Duration = out.Metadata.Duration
	}
	return result, nil
}

var _ stt.Provider = (*Provider)(nil)
