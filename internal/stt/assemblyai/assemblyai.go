// Package assemblyai implements the stt.Provider interface against the
// AssemblyAI v2 API: upload bytes, create a transcript job with speaker
// labels, poll until terminal, and normalize utterances.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// ProviderName is the registered name for the AssemblyAI adapter.
const ProviderName = "assemblyai"

const defaultBaseURL = "https://api.assemblyai.com"

// Config holds configuration for the AssemblyAI adapter.
type Config struct {
	APIKey       string        `json:"api_key"`
	BaseURL      string        `json:"base_url"`
	PollInterval time.Duration `json:"poll_interval"`
	PollTimeout  time.Duration `json:"poll_timeout"`
}

// Provider implements stt.Provider using AssemblyAI's job-based API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates an AssemblyAI adapter.
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

// Factory returns a provider.Factory creating AssemblyAI adapters from a
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
			return nil, apperrors.Configuration("assemblyai api key")
		}
		return NewProvider(c), nil
	}
}

// Name returns the adapter name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the adapter has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.cfg.APIKey != "" }

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptJob struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Error         string `json:"error"`
	Text          string `json:"text"`
	LanguageCode  string `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Utterances    []utterance `json:"utterances"`
}

// utterance timestamps are integer milliseconds.
type utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// Transcribe uploads the audio, creates a diarized transcript job, polls it
// to a terminal state, and normalizes the utterances.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*transcript.Result, error) {
	audioURL, err := p.upload(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}

	jobID, err := p.createJob(ctx, audioURL, req.LanguageCode)
	if err != nil {
		return nil, err
	}

	var job *transcriptJob
	err = stt.PollUntil(ctx, ProviderName, p.cfg.PollInterval, p.cfg.PollTimeout, func(ctx context.Context) error {
		j, err := p.getJob(ctx, jobID)
		if err != nil {
			return err
		}
		switch j.Status {
		case "completed":
			job = j
			return nil
		case "error":
			return apperrors.Vendor(ProviderName, j.Error)
		default:
			return stt.Pending()
		}
	})
	if err != nil {
		return nil, err
	}

	return normalize(job)
}

func (p *Provider) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("assemblyai: open audio: %w", err)
	}
	defer f.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("assemblyai: build upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := p.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", apperrors.Vendor(ProviderName, "upload returned no url")
	}
	return out.UploadURL, nil
}

func (p *Provider) createJob(ctx context.Context, audioURL, language string) (string, error) {
	if language == "" {
		language = "ko"
	}
	payload, err := json.Marshal(map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": true,
		"language_code":  language,
	})
	if err != nil {
		return "", fmt.Errorf("assemblyai: marshal job request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("assemblyai: build job request: %w", err)
	}
	httpReq.Header.Set("Authorization", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	var job transcriptJob
	if err := p.do(httpReq, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", apperrors.Vendor(ProviderName, "job creation returned no id")
	}
	return job.ID, nil
}

func (p *Provider) getJob(ctx context.Context, id string) (*transcriptJob, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("assemblyai: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", p.cfg.APIKey)

	var job transcriptJob
	if err := p.do(httpReq, &job); err != nil {
		return nil, err
	}
	return &job, nil
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
		return fmt.Errorf("assemblyai: decode response: %w", err)
	}
	return nil
}

// normalize converts a completed job into the canonical result. Utterance
// timestamps arrive as integer milliseconds.
func normalize(job *transcriptJob) (*transcript.Result, error) {
	b := transcript.NewBuilder()
	b.SetLanguage(job.LanguageCode)

	for _, u := range job.Utterances {
		b.AddUtterance(u.Speaker, u.Text, float64(u.Start)/1000.0, float64(u.End)/1000.0)
	}

	result, err := b.Result(job.Text)
	if err != nil {
		return nil, apperrors.Normalization(ProviderName).WithCause(err)
	}
	if job.AudioDuration > 0 {
		result.Duration = job.AudioDuration
	}
	return result, nil
}

var _ stt.Provider = (*Provider)(nil)
