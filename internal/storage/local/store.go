// Package local implements storage on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store opens plain file paths (optionally prefixed with file://).
type Store struct{}

// New creates a filesystem-backed store.
func New() *Store {
	return &Store{}
}

// OpenReader opens the file at location for reading.
func (s *Store) OpenReader(_ context.Context, location string) (io.ReadCloser, error) {
	path, err := s.path(location)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- the source path is operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	return f, nil
}

// OpenWriter creates or truncates the file at location, creating parent
// directories as needed.
func (s *Store) OpenWriter(_ context.Context, location string) (io.WriteCloser, error) {
	path, err := s.path(location)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	// #nosec G304 -- the sink path is operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", path, err)
	}
	return f, nil
}

func (s *Store) path(location string) (string, error) {
	path := strings.TrimPrefix(location, "file://")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	return filepath.Clean(path), nil
}
