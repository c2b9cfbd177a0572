package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubProvider struct {
	content string
	err     error
	lastReq CompletionRequest
}

func (s *stubProvider) Name() string                         { return "stub" }
func (s *stubProvider) IsAvailable(_ context.Context) bool   { return true }
func (s *stubProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &CompletionResponse{Content: s.content}, nil
}

func TestComplete(t *testing.T) {
	p := &stubProvider{content: "응답"}
	got, err := Complete(context.Background(), p, "시스템", "사용자")
	if err != nil {
		t.Fatal(err)
	}
	if got != "응답" {
		t.Errorf("unexpected content: %q", got)
	}
	if p.lastReq.SystemPrompt != "시스템" {
		t.Errorf("system prompt not forwarded: %q", p.lastReq.SystemPrompt)
	}
}

func TestCompleteStructured(t *testing.T) {
	p := &stubProvider{content: `{"counselor_speaker_id": "0", "confidence": 0.9}`}

	var result struct {
		CounselorSpeakerID string  `json:"counselor_speaker_id"`
		Confidence         float64 `json:"confidence"`
	}
	err := CompleteStructured(context.Background(), p, "분류기", "입력", &result)
	if err != nil {
		t.Fatal(err)
	}
	if result.CounselorSpeakerID != "0" || result.Confidence != 0.9 {
		t.Errorf("unexpected result: %+v", result)
	}
	if !p.lastReq.JSONMode {
		t.Error("structured completion must request JSON mode")
	}
	if !strings.Contains(p.lastReq.SystemPrompt, "ONLY the JSON object") {
		t.Error("JSON instruction not appended to system prompt")
	}
}

func TestCompleteStructured_FencedOutput(t *testing.T) {
	p := &stubProvider{content: "```json\n{\"value\": 3}\n```"}
	var result struct {
		Value int `json:"value"`
	}
	if err := CompleteStructured(context.Background(), p, "s", "u", &result); err != nil {
		t.Fatal(err)
	}
	if result.Value != 3 {
		t.Errorf("fenced JSON not parsed: %+v", result)
	}
}

func TestCompleteStructured_ProseWrappedOutput(t *testing.T) {
	p := &stubProvider{content: "다음과 같습니다: {\"value\": 7} 이상입니다."}
	var result struct {
		Value int `json:"value"`
	}
	if err := CompleteStructured(context.Background(), p, "s", "u", &result); err != nil {
		t.Fatal(err)
	}
	if result.Value != 7 {
		t.Errorf("wrapped JSON not parsed: %+v", result)
	}
}

func TestCompleteStructured_ProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("boom")}
	var result map[string]any
	if err := CompleteStructured(context.Background(), p, "s", "u", &result); err == nil {
		t.Error("provider error must propagate")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":      `{"a":1}`,
		"prefix {\"a\":1} suffix":      `{"a":1}`,
		"no json here":                 "no json here",
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Errorf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
