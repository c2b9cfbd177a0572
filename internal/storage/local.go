package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage on the local filesystem. It exists for
// development and tests; presigned URLs are synthetic file-scheme URLs.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a filesystem-backed store rooted at baseDir.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage: local base dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base dir: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base dir: %w", err)
	}
	return &LocalStorage{baseDir: abs}, nil
}

// resolve maps a storage key to an absolute path, rejecting traversal
// outside the base directory.
func (l *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	full := filepath.Join(l.baseDir, clean)
	if !strings.HasPrefix(full, l.baseDir+string(filepath.Separator)) && full != l.baseDir {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return full, nil
}

func (l *LocalStorage) Upload(_ context.Context, key string, reader io.Reader) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage: local upload %s: %w", key, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("storage: local upload %s: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("storage: local upload %s: %w", key, err)
	}
	return nil
}

func (l *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("storage: local download %s: %w", key, err)
	}
	return f, nil
}

func (l *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: local delete %s: %w", key, err)
	}
	return nil
}

func (l *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	full, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *LocalStorage) PresignPut(_ context.Context, key string, _ string, expiry time.Duration) (string, error) {
	return l.syntheticURL(key, expiry)
}

func (l *LocalStorage) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return l.syntheticURL(key, expiry)
}

func (l *LocalStorage) syntheticURL(key string, expiry time.Duration) (string, error) {
	full, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "file",
		Path:     full,
		RawQuery: url.Values{"expires": {expiry.String()}}.Encode(),
	}
	return u.String(), nil
}

var _ Storage = (*LocalStorage)(nil)
