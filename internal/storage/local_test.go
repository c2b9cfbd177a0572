package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := "uploads/session-1/audio.m4a"
	if err := s.Upload(ctx, key, strings.NewReader("audio-bytes")); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected object to exist, ok=%v err=%v", ok, err)
	}

	r, err := s.Download(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("unexpected content: %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.Exists(ctx, key)
	if ok {
		t.Error("object should be gone after delete")
	}

	// Deleting a missing object is not an error.
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("delete of missing object must be nil, got %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Cleaned paths stay under the base dir even with .. components.
	if err := s.Upload(ctx, "../../etc/passwd", strings.NewReader("x")); err != nil {
		t.Fatalf("traversal key should be cleaned, got %v", err)
	}
	ok, err := s.Exists(ctx, "etc/passwd")
	if err != nil || !ok {
		t.Errorf("cleaned key should resolve inside base dir, ok=%v err=%v", ok, err)
	}
}

func TestLocalStorage_PresignURLs(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	put, err := s.PresignPut(ctx, "uploads/a.m4a", "audio/mp4", 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(put, "file://") {
		t.Errorf("expected file scheme, got %q", put)
	}

	get, err := s.PresignGet(ctx, "uploads/a.m4a", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(get, "expires=") {
		t.Errorf("expected expiry marker, got %q", get)
	}
}
