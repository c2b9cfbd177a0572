// Package storage provides object storage for session audio files.
// Backends: Amazon S3 (and S3-compatible services) for production, local
// filesystem for development and tests.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the operations the service needs from an object store.
type Storage interface {
	// Upload writes data from reader to the given key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download returns a reader for the object at the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at the given key. Returns nil if the
	// object does not exist.
	Delete(ctx context.Context, key string) error

	// Exists checks whether an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// PresignPut returns a time-limited URL a client can PUT the object to
	// directly, bypassing the API server.
	PresignPut(ctx context.Context, key string, contentType string, expiry time.Duration) (string, error)

	// PresignGet returns a time-limited URL for reading the object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
