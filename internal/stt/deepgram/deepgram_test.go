package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/stt"
)

func listenPayload() *listenResponse {
	var out listenResponse
	raw := `{
		"metadata": {"duration": 7.25},
		"results": {"channels": [{"alternatives": [{
			"transcript": "안녕하세요. 네 반갑습니다.",
			"words": [
				{"word": "안녕하세요", "punctuated_word": "안녕하세요.", "start": 0.1, "end": 0.9, "speaker": 0},
				{"word": "네", "punctuated_word": "네", "start": 1.5, "end": 1.7, "speaker": 1},
				{"word": "반갑습니다", "punctuated_word": "반갑습니다.", "start": 1.8, "end": 2.5, "speaker": 1}
			]
		}]}]}
	}`
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		panic(err)
	}
	return &out
}

func TestNormalize(t *testing.T) {
	r, err := normalize(listenPayload(), "ko")
	if err != nil {
		t.Fatal(err)
	}

	// Speaker change flushes: 2 segments, 2 speakers.
	if len(r.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(r.Segments))
	}
	if r.TotalSpeakers() != 2 {
		t.Errorf("expected 2 speakers, got %d", r.TotalSpeakers())
	}
	if r.Segments[0].SpeakerID != "0" || r.Segments[1].SpeakerID != "1" {
		t.Errorf("integer speaker tags must become strings: %+v", r.Segments)
	}
	if r.Segments[0].Text != "안녕하세요." {
		t.Errorf("punctuated word must be used: %q", r.Segments[0].Text)
	}
	if r.Segments[1].Text != "네 반갑습니다." {
		t.Errorf("words must join with spaces: %q", r.Segments[1].Text)
	}
	if r.FullTranscript != "안녕하세요. 네 반갑습니다." {
		t.Errorf("vendor transcript must win: %q", r.FullTranscript)
	}
	if r.Duration != 7.25 {
		t.Errorf("metadata duration must win: %v", r.Duration)
	}
}

func TestNormalize_EmptyChannels(t *testing.T) {
	_, err := normalize(&listenResponse{}, "ko")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNormalization {
		t.Fatalf("expected normalization error, got %v", err)
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("diarize") != "true" || q.Get("punctuate") != "true" {
			t.Errorf("diarize/punctuate must be requested: %v", q)
		}
		if q.Get("language") != "ko" {
			t.Errorf("language not forwarded: %q", q.Get("language"))
		}
		if r.Header.Get("Authorization") != "Token key" {
			t.Error("missing token auth")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"duration": 1.0},
			"results": map[string]any{"channels": []map[string]any{{"alternatives": []map[string]any{{
				"transcript": "안녕",
				"words":      []map[string]any{{"word": "안녕", "start": 0.0, "end": 1.0, "speaker": 0}},
			}}}}},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(Config{APIKey: "key", BaseURL: srv.URL})
	r, err := p.Transcribe(context.Background(), stt.Request{AudioPath: path, LanguageCode: "ko"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Segments) != 1 || r.Segments[0].Text != "안녕" {
		t.Errorf("unexpected result: %+v", r.Segments)
	}
}

func TestTranscribe_VendorRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"err_msg": "unsupported encoding"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Transcribe(context.Background(), stt.Request{AudioPath: path})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeVendor {
		t.Fatalf("expected vendor error, got %v", err)
	}
}
