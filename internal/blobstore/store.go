// Package blobstore keeps uploaded files until their ingestion job has run.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"study-notes-platform/internal/config"
)

// ErrNotFound is returned by Get for an unknown key.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New returns the backend selected by BLOB_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewLocalStore(cfg.FileStorageDir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
