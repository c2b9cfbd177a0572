// Package speechmatics implements the stt.Provider interface against the
// Speechmatics batch v2 API: multipart job submit, status polling, then a
// json-v2 transcript fetch. Tokens are word-level with explicit
// "word"/"punctuation" types and "S1"-style speaker labels.
package speechmatics

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
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// ProviderName is the registered name for the Speechmatics adapter.
const ProviderName = "speechmatics"

const defaultBaseURL = "https://asr.api.speechmatics.com/v2"

// Config holds configuration for the Speechmatics adapter.
type Config struct {
	APIKey       string        `json:"api_key"`
	BaseURL      string        `json:"base_url"`
	PollInterval time.Duration `json:"poll_interval"`
	PollTimeout  time.Duration `json:"poll_timeout"`
}

// Provider implements stt.Provider using Speechmatics batch jobs.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a Speechmatics adapter.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = stt.DefaultPollInterval
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = stt.DefaultPollTimeout
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: 5 * time.Minute}}
}

// Factory returns a provider.Factory creating Speechmatics adapters from a
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
		if v, ok := cfg["poll_interval"].(time.Duration); ok {
			c.PollInterval = v
		}
		if v, ok := cfg["poll_timeout"].(time.Duration); ok {
			c.PollTimeout = v
		}
		if c.APIKey == "" {
			return nil, apperrors.Configuration("speechmatics api key")
		}
		return NewProvider(c), nil
	}
}

// Name returns the adapter name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the adapter has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.cfg.APIKey != "" }

type jobStatusResponse struct {
	Job struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Duration float64 `json:"duration"`
	} `json:"job"`
}

type transcriptResponse struct {
	Job struct {
		Duration float64 `json:"duration"`
	} `json:"job"`
	Results []token `json:"results"`
}

// token timestamps are float seconds. Type is "word" or "punctuation";
// punctuation tokens inherit the running speaker.
type token struct {
	Type         string  `json:"type"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Alternatives []struct {
		Content string `json:"content"`
		Speaker string `json:"speaker"`
	} `json:"alternatives"`
}

// Transcribe submits a batch job with speaker diarization, polls it to
// completion, fetches the json-v2 transcript, and normalizes the tokens.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*transcript.Result, error) {
	language := req.LanguageCode
	if language == "" {
		language = "ko"
	}

	jobID, err := p.submit(ctx, req.AudioPath, language)
	if err != nil {
		return nil, err
	}

	err = stt.PollUntil(ctx, ProviderName, p.cfg.PollInterval, p.cfg.PollTimeout, func(ctx context.Context) error {
		status, err := p.getStatus(ctx, jobID)
		if err != nil {
			return err
		}
		switch status.Job.Status {
		case "done":
			return nil
		case "rejected", "expired", "deleted":
			msg := status.Job.Status
			if len(status.Job.Errors) > 0 {
				msg = status.Job.Errors[0].Message
			}
			return apperrors.Vendor(ProviderName, msg)
		default:
			return stt.Pending()
		}
	})
	if err != nil {
		return nil, err
	}

	tr, err := p.getTranscript(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return normalize(tr, language)
}

func (p *Provider) submit(ctx context.Context, audioPath, language string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("speechmatics: read audio: %w", err)
	}

	jobConfig, err := json.Marshal(map[string]any{
		"type": "transcription",
		"transcription_config": map[string]any{
			"language":    language,
			"diarization": "speaker",
		},
	})
	if err != nil {
		return "", fmt.Errorf("speechmatics: marshal config: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("data_file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("speechmatics: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("speechmatics: write audio: %w", err)
	}
	_ = writer.WriteField("config", string(jobConfig))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/jobs", &buf)
	if err != nil {
		return "", fmt.Errorf("speechmatics: build submit request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := p.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.Vendor(ProviderName, "job submit returned no id")
	}
	return out.ID, nil
}

func (p *Provider) getStatus(ctx context.Context, jobID string) (*jobStatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("speechmatics: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	var out jobStatusResponse
	if err := p.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Provider) getTranscript(ctx context.Context, jobID string) (*transcriptResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/jobs/"+jobID+"/transcript?format=json-v2", nil)
	if err != nil {
		return nil, fmt.Errorf("speechmatics: build transcript request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	var out transcriptResponse
	if err := p.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.ExternalServiceError(ProviderName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.ExternalServiceError(ProviderName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.Vendor(ProviderName, fmt.Sprintf("status %d: %s", resp.StatusCode, string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("speechmatics: decode response: %w", err)
	}
	return nil
}

// normalize feeds word tokens into the builder and attaches punctuation
// tokens to the running word without flushing.
func normalize(tr *transcriptResponse, language string) (*transcript.Result, error) {
	b := transcript.NewBuilder()
	b.SetLanguage(language)

	for _, tok := range tr.Results {
		if len(tok.Alternatives) == 0 {
			continue
		}
		alt := tok.Alternatives[0]
		switch tok.Type {
		case "punctuation":
			b.AddPunctuation(alt.Content, tok.EndTime)
		default:
			b.AddWord(alt.Speaker, alt.Content, tok.StartTime, tok.EndTime)
		}
	}

	result, err := b.Result("")
	if err != nil {
		return nil, apperrors.Normalization(ProviderName).WithCause(err)
	}
	if tr.Job.Duration > 0 {
		result.Duration = tr.Job.Duration
	}
	return result, nil
}

var _ stt.Provider = (*Provider)(nil)
