// Package rtzr implements the stt.Provider interface against the RTZR
// (VITO) API: OAuth client-credential authentication, multipart job submit,
// polling, and normalization of utterances whose timestamps arrive as
// start_at/duration millisecond offsets.
package rtzr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// ProviderName is the registered name for the RTZR adapter.
const ProviderName = "rtzr"

const defaultBaseURL = "https://openapi.vito.ai"

// Config holds configuration for the RTZR adapter.
type Config struct {
	ClientID     string        `json:"client_id"`
	ClientSecret string        `json:"client_secret"`
	BaseURL      string        `json:"base_url"`
	PollInterval time.Duration `json:"poll_interval"`
	PollTimeout  time.Duration `json:"poll_timeout"`
}

// Provider implements stt.Provider using the RTZR batch API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates an RTZR adapter.
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

// Factory returns a provider.Factory creating RTZR adapters from a generic
// config map.
func Factory() provider.Factory[stt.Provider] {
	return func(cfg map[string]any) (stt.Provider, error) {
		c := Config{}
		if v, ok := cfg["client_id"].(string); ok {
			c.ClientID = v
		}
		if v, ok := cfg["client_secret"].(string); ok {
			c.ClientSecret = v
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
		if c.ClientID == "" || c.ClientSecret == "" {
			return nil, apperrors.Configuration("rtzr client credentials")
		}
		return NewProvider(c), nil
	}
}

// Name returns the adapter name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the adapter has credentials.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.cfg.ClientID != "" && p.cfg.ClientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type jobResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Results struct {
		Utterances []utterance `json:"utterances"`
	} `json:"results"`
	Error struct {
		Message string `json:"msg"`
	} `json:"error"`
}

// utterance timestamps are millisecond offsets: start_at plus duration.
type utterance struct {
	Speaker  int    `json:"spk"`
	Msg      string `json:"msg"`
	StartAt  int64  `json:"start_at"`
	Duration int64  `json:"duration"`
}

// Transcribe authenticates, submits the audio with diarization enabled,
// polls the job to a terminal state, and normalizes the utterances.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*transcript.Result, error) {
	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	jobID, err := p.submit(ctx, token, req)
	if err != nil {
		return nil, err
	}

	var job *jobResponse
	err = stt.PollUntil(ctx, ProviderName, p.cfg.PollInterval, p.cfg.PollTimeout, func(ctx context.Context) error {
		j, err := p.getJob(ctx, token, jobID)
		if err != nil {
			return err
		}
		switch j.Status {
		case "completed":
			job = j
			return nil
		case "failed":
			return apperrors.Vendor(ProviderName, j.Error.Message)
		default:
			return stt.Pending()
		}
	})
	if err != nil {
		return nil, err
	}

	return normalize(job, req.LanguageCode)
}

func (p *Provider) authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/authenticate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("rtzr: build auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out tokenResponse
	if err := p.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apperrors.Vendor(ProviderName, "authentication returned no token")
	}
	return out.AccessToken, nil
}

func (p *Provider) submit(ctx context.Context, token string, req stt.Request) (string, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return "", fmt.Errorf("rtzr: read audio: %w", err)
	}

	language := req.LanguageCode
	if language == "" {
		language = "ko"
	}
	jobConfig, err := json.Marshal(map[string]any{
		"use_diarization": true,
		"use_itn":         true,
		"language":        language,
	})
	if err != nil {
		return "", fmt.Errorf("rtzr: marshal config: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return "", fmt.Errorf("rtzr: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("rtzr: write audio: %w", err)
	}
	_ = writer.WriteField("config", string(jobConfig))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("rtzr: build submit request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var out jobResponse
	if err := p.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.Vendor(ProviderName, "job submit returned no id")
	}
	return out.ID, nil
}

func (p *Provider) getJob(ctx context.Context, token, id string) (*jobResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/transcribe/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("rtzr: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	var out jobResponse
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
		return fmt.Errorf("rtzr: decode response: %w", err)
	}
	return nil
}

// normalize converts utterances into the canonical result, turning
// millisecond start_at/duration offsets into float-second spans.
func normalize(job *jobResponse, language string) (*transcript.Result, error) {
	b := transcript.NewBuilder()
	b.SetLanguage(language)

	for _, u := range job.Results.Utterances {
		start := float64(u.StartAt) / 1000.0
		end := float64(u.StartAt+u.Duration) / 1000.0
		b.AddUtterance(strconv.Itoa(u.Speaker), u.Msg, start, end)
	}

	result, err := b.Result("")
	if err != nil {
		return nil, apperrors.Normalization(ProviderName).WithCause(err)
	}
	return result, nil
}

var _ stt.Provider = (*Provider)(nil)
