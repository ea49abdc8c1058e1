package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/openzim/cmsctl/pkg/auth/types"
)

// FileStorage implements file-based token storage, one file per namespace.
type FileStorage struct {
	path     string
	lifetime time.Duration
	now      func() time.Time
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(config *types.StorageConfig, cliName string, namespace types.ProviderType) (*FileStorage, error) {
	dir := config.Path
	if dir == "" {
		// Use XDG-compliant default path
		dir = filepath.Join(xdg.ConfigHome, cliName)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}

	return &FileStorage{
		path:     filepath.Join(dir, "token-"+string(namespace)+".json"),
		lifetime: config.Lifetime,
		now:      time.Now,
	}, nil
}

// SaveToken saves a token to a file.
func (f *FileStorage) SaveToken(ctx context.Context, token *types.StoredToken) error {
	data, err := encodeEntry(token, f.lifetime, f.now())
	if err != nil {
		return err
	}

	// Write to a sibling file first so a crash never leaves a torn entry
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// LoadToken loads a token from a file.
func (f *FileStorage) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	return decodeEntry(data, f.now())
}

// DeleteToken deletes the token file.
func (f *FileStorage) DeleteToken(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// Location returns the path of the token file.
func (f *FileStorage) Location() string {
	return f.path
}
