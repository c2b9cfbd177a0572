package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

func TestNormalize(t *testing.T) {
	job := &transcriptJob{
		Status:        "completed",
		Text:          "안녕하세요. 네 반갑습니다. 오늘 어떠세요.",
		LanguageCode:  "ko",
		AudioDuration: 12.5,
		Utterances: []utterance{
			{Speaker: "A", Text: "안녕하세요.", Start: 0, End: 1500},
			{Speaker: "B", Text: "네 반갑습니다.", Start: 2000, End: 3500},
			{Speaker: "A", Text: "오늘 어떠세요.", Start: 4000, End: 5500},
			{Speaker: "B", Text: "   ", Start: 6000, End: 6500},
		},
	}

	r, err := normalize(job)
	if err != nil {
		t.Fatal(err)
	}

	// 3 non-empty utterances across 2 speakers.
	if len(r.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(r.Segments))
	}
	if r.TotalSpeakers() != 2 {
		t.Errorf("expected 2 speakers, got %d", r.TotalSpeakers())
	}

	// Millisecond ints convert to float seconds.
	if r.Segments[0].StartTime != 0 || r.Segments[0].EndTime != 1.5 {
		t.Errorf("ms conversion wrong: [%v, %v]", r.Segments[0].StartTime, r.Segments[0].EndTime)
	}
	if r.Segments[1].StartTime != 2.0 {
		t.Errorf("ms conversion wrong: %v", r.Segments[1].StartTime)
	}

	if r.FullTranscript != job.Text {
		t.Errorf("vendor transcript must win: %q", r.FullTranscript)
	}
	if r.Duration != 12.5 {
		t.Errorf("vendor duration must win: %v", r.Duration)
	}
	if r.Language != "ko" {
		t.Errorf("language lost: %q", r.Language)
	}
}

func TestNormalize_NoSegments(t *testing.T) {
	job := &transcriptJob{Status: "completed", Utterances: []utterance{{Speaker: "A", Text: "  ", Start: 0, End: 100}}}
	_, err := normalize(job)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNormalization {
		t.Fatalf("expected normalization error, got %v", err)
	}
	if !errors.Is(err, transcript.ErrNoSegments) {
		t.Error("cause must be ErrNoSegments")
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.m4a")
	if err := os.WriteFile(path, []byte("fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe_JobLifecycle(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			t.Errorf("missing auth header on %s", r.URL.Path)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/a"})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["speaker_labels"] != true {
				t.Error("diarization must be requested")
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id": "job-1", "status": "completed", "text": "안녕하세요",
				"utterances": []map[string]any{
					{"speaker": "A", "text": "안녕하세요", "start": 0, "end": 1000},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewProvider(Config{APIKey: "key", BaseURL: srv.URL, PollInterval: time.Millisecond, PollTimeout: time.Second})
	r, err := p.Transcribe(context.Background(), stt.Request{AudioPath: writeAudio(t), LanguageCode: "ko"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Segments) != 1 || r.Segments[0].Text != "안녕하세요" {
		t.Errorf("unexpected result: %+v", r.Segments)
	}
	if polls < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls)
	}
}

func TestTranscribe_JobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/a"})
		case r.URL.Path == "/v2/transcript":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "error", "error": "unsupported codec"})
		}
	}))
	defer srv.Close()

	p := NewProvider(Config{APIKey: "key", BaseURL: srv.URL, PollInterval: time.Millisecond, PollTimeout: time.Second})
	_, err := p.Transcribe(context.Background(), stt.Request{AudioPath: writeAudio(t)})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeVendor {
		t.Fatalf("expected vendor error, got %v", err)
	}
}

func TestFactory_RequiresKey(t *testing.T) {
	if _, err := Factory()(map[string]any{}); err == nil {
		t.Error("factory must reject missing api key")
	}
	p, err := Factory()(map[string]any{"api_key": "k"})
	if err != nil || p.Name() != ProviderName {
		t.Errorf("factory failed: %v", err)
	}
}
