package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the ledger in a local JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the parent directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: %w: empty path", ErrNotConfigured)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the file. A missing or empty file is reported as absent.
func (s *FileStore) Read(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Write replaces the file via a temporary file and rename, so readers never see a
// partially written ledger.
func (s *FileStore) Write(ctx context.Context, data []byte, pre Precondition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pre.Enabled {
		current, err := s.readLocked()
		if err != nil {
			return "", err
		}
		version := ""
		if current != nil {
			version = current.Version
		}
		if version != pre.Version {
			return "", ErrVersionConflict
		}
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("replace ledger file: %w", err)
	}
	return contentVersion(data), nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readLocked() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &Document{Data: data, Version: contentVersion(data)}, nil
}

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
