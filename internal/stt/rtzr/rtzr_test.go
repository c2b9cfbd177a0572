package rtzr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/stt"
)

func TestNormalize_DurationOffsets(t *testing.T) {
	job := &jobResponse{Status: "completed"}
	job.Results.Utterances = []utterance{
		{Speaker: 0, Msg: "안녕하세요", StartAt: 500, Duration: 1200},
		{Speaker: 1, Msg: "네 반갑습니다", StartAt: 2000, Duration: 1500},
		{Speaker: 0, Msg: "", StartAt: 4000, Duration: 500},
	}

	r, err := normalize(job, "ko")
	if err != nil {
		t.Fatal(err)
	}

	if len(r.Segments) != 2 {
		t.Fatalf("expected 2 segments (empty dropped), got %d", len(r.Segments))
	}
	// start_at + duration in ms becomes a float-second span.
	if r.Segments[0].StartTime != 0.5 || r.Segments[0].EndTime != 1.7 {
		t.Errorf("offset conversion wrong: [%v, %v]", r.Segments[0].StartTime, r.Segments[0].EndTime)
	}
	if r.Segments[1].EndTime != 3.5 {
		t.Errorf("offset conversion wrong: %v", r.Segments[1].EndTime)
	}
	if r.Segments[0].SpeakerID != "0" || r.Segments[1].SpeakerID != "1" {
		t.Errorf("integer spk must become string ids: %+v", r.Segments)
	}
	if r.TotalSpeakers() != 2 {
		t.Errorf("expected 2 speakers, got %d", r.TotalSpeakers())
	}
}

func TestNormalize_Empty(t *testing.T) {
	_, err := normalize(&jobResponse{Status: "completed"}, "ko")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNormalization {
		t.Fatalf("expected normalization error, got %v", err)
	}
}

func TestTranscribe_OAuthAndPolling(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/authenticate":
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if r.FormValue("client_id") != "id" || r.FormValue("client_secret") != "secret" {
				t.Error("credentials not forwarded")
			}
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transcribe":
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Error("missing bearer token")
			}
			var cfg map[string]any
			json.Unmarshal([]byte(r.FormValue("config")), &cfg)
			if cfg["use_diarization"] != true {
				t.Error("diarization must be requested")
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "t1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transcribe/t1":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]string{"id": "t1", "status": "transcribing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id": "t1", "status": "completed",
				"results": map[string]any{"utterances": []map[string]any{
					{"spk": 0, "msg": "안녕하세요", "start_at": 0, "duration": 1000},
				}},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(Config{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL, PollInterval: time.Millisecond, PollTimeout: time.Second})
	r, err := p.Transcribe(context.Background(), stt.Request{AudioPath: path, LanguageCode: "ko"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Segments) != 1 || r.Segments[0].Text != "안녕하세요" {
		t.Errorf("unexpected result: %+v", r.Segments)
	}
}

func TestTranscribe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/authenticate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"id": "t1"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "t1", "status": "transcribing"})
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(Config{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL, PollInterval: time.Millisecond, PollTimeout: 20 * time.Millisecond})
	_, err := p.Transcribe(context.Background(), stt.Request{AudioPath: path})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestFactory_RequiresCredentials(t *testing.T) {
	if _, err := Factory()(map[string]any{"client_id": "id"}); err == nil {
		t.Error("factory must reject missing secret")
	}
	p, err := Factory()(map[string]any{"client_id": "id", "client_secret": "s"})
	if err != nil || p.Name() != ProviderName {
		t.Errorf("factory failed: %v", err)
	}
}
