// Package local provides a filesystem blob store for development and
// tests.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore writes artifacts under a root directory.
type BlobStore struct {
	root string
}

// New creates the root directory if needed and returns a BlobStore.
func New(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &BlobStore{root: root}, nil
}

// PutObject writes data under the root and returns a file:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	target := filepath.Join(s.root, filepath.Clean("/"+path))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write blob %s: %w", target, err)
	}
	return "file://" + target, nil
}
