package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"study-notes-platform/utils"
)

const (
	indexFileName = "index.json.br"
	tempPattern   = "index-*.tmp"
)

// ErrNotFound is returned by stores when no index exists for a document.
var ErrNotFound = errors.New("index not found")

// Store persists serialized indexes addressed by document id.
type Store interface {
	Write(ctx context.Context, documentID string, data []byte) error
	Read(ctx context.Context, documentID string) ([]byte, error)
	Delete(ctx context.Context, documentID string) error
}

// FileStore keeps one brotli-compressed file per document under root.
// Writes go to a temp file in the same directory and are renamed into place.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) dir(documentID string) (string, error) {
	name := url.PathEscape(documentID)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid document id %q", documentID)
	}
	return filepath.Join(s.root, name), nil
}

func (s *FileStore) Write(ctx context.Context, documentID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.dir(documentID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	packed, err := utils.CompressData(data, utils.CompressionBrotli)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(packed); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, indexFileName)); err != nil {
		cleanup()
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, documentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.dir(documentID)
	if err != nil {
		return nil, ErrNotFound
	}
	packed, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return utils.DecompressData(packed, utils.CompressionBrotli)
}

func (s *FileStore) Delete(_ context.Context, documentID string) error {
	dir, err := s.dir(documentID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// SweepTemp removes temp files left behind by interrupted writes that are
// older than maxAge. It returns the number of files removed.
func (s *FileStore) SweepTemp(maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*", tempPattern))
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}
