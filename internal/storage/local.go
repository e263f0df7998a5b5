package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/anonto42/threadboard/backend/internal/media"
)

// LocalStorage writes uploads below a directory served at BaseURL
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates a LocalStorage rooted at root
func NewLocalStorage(root, baseURL string) *LocalStorage {
	return &LocalStorage{root: root, baseURL: baseURL}
}

func (s *LocalStorage) path(name string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	return p, nil
}

// Save writes the upload to disk
func (s *LocalStorage) Save(_ context.Context, name string, upload *media.Upload) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(p, upload.Content, 0o644); err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	return nil
}

// Delete removes the file and its now-empty parent directory
func (s *LocalStorage) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	// ObjectName puts every upload in its own directory
	_ = os.Remove(filepath.Dir(p))
	return nil
}

// URL returns the public URL of a stored name
func (s *LocalStorage) URL(name string) string {
	return joinURL(s.baseURL, name)
}
