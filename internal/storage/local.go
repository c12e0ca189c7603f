package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects below a directory that the HTTP server exposes
// under BaseURL. It is the spool for certificates whose remote upload failed.
type LocalStore struct {
	Dir     string
	BaseURL string
}

// NewLocal creates dir if needed.
func NewLocal(dir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: local dir not set", ErrNotConfigured)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	if baseURL == "" {
		baseURL = "/files"
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL}, nil
}

// Name implements BlobStore.
func (l *LocalStore) Name() string { return "local" }

// Put writes to a temp file and renames it into place.
func (l *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" || clean == "." {
		return "", fmt.Errorf("local put: invalid key %q", key)
	}
	dst := filepath.Join(l.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("local put %q: %w", clean, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("local put %q: %w", clean, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("local put %q: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("local put %q: %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("local put %q: %w", clean, err)
	}
	return joinURL(l.BaseURL, filepath.ToSlash(clean)), nil
}
