// Package storage provides token storage implementations for authentication.
//
// Every backend stores one token per namespace. Entries are wrapped in an
// envelope carrying their own lifetime, so a backend entry can outlive or
// predate the token it holds; an entry past its lifetime reads as absent.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
)

var (
	// ErrNotFound is returned when no entry exists for the namespace.
	ErrNotFound = errors.New("token not found")
	// ErrCorrupt is returned when an entry exists but cannot be decoded.
	ErrCorrupt = errors.New("token entry is corrupt")

	// errEntryElapsed marks an entry whose own lifetime has passed.
	errEntryElapsed = fmt.Errorf("%w: entry lifetime elapsed", ErrNotFound)
)

// Error reports a failure of the persistence medium.
type Error struct {
	Operation string // "save", "load", "delete"
	Namespace string
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Operation + " token"
	if e.Namespace != "" {
		msg += " for " + e.Namespace
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// TokenStorage is an interface for storing and retrieving tokens.
type TokenStorage interface {
	// SaveToken stores a token.
	SaveToken(ctx context.Context, token *types.StoredToken) error
	// LoadToken retrieves a stored token.
	LoadToken(ctx context.Context) (*types.StoredToken, error)
	// DeleteToken removes a stored token.
	DeleteToken(ctx context.Context) error
}

// Locator is implemented by storages that can tell where entries are kept.
type Locator interface {
	Location() string
}

// Describe returns the location of s, or "" when it cannot tell.
func Describe(s TokenStorage) string {
	if l, ok := s.(Locator); ok {
		return l.Location()
	}
	return ""
}

// Factory creates token storage instances based on configuration.
type Factory struct{}

// NewFactory creates a new storage factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a token storage instance for one namespace.
func (f *Factory) Create(config *types.StorageConfig, cliName string, namespace types.ProviderType) (TokenStorage, error) {
	if config == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if !namespace.Valid() {
		return nil, fmt.Errorf("unknown storage namespace: %q", namespace)
	}

	switch config.Type {
	case types.StorageTypeFile:
		return NewFileStorage(config, cliName, namespace)
	case types.StorageTypeKeyring:
		return NewKeyringStorage(config, cliName, namespace)
	case types.StorageTypeMemory:
		return NewMemoryStorage(config.Lifetime), nil
	case types.StorageTypeAuto:
		keyringStorage, err := NewKeyringStorage(config, cliName, namespace)
		if err != nil {
			return nil, err
		}
		fileStorage, err := NewFileStorage(config, cliName, namespace)
		if err != nil {
			return nil, err
		}
		return NewMultiStorage(keyringStorage, fileStorage), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// entry is the serialized envelope written by every backend.
type entry struct {
	Token     *types.StoredToken `json:"token"`
	StoredAt  time.Time          `json:"stored_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

func encodeEntry(token *types.StoredToken, lifetime time.Duration, now time.Time) ([]byte, error) {
	if token == nil {
		return nil, fmt.Errorf("token is nil")
	}
	if lifetime <= 0 {
		lifetime = types.DefaultEntryLifetime
	}
	data, err := json.Marshal(entry{
		Token:     token,
		StoredAt:  now.UTC(),
		ExpiresAt: now.Add(lifetime).UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token: %w", err)
	}
	return data, nil
}

// decodeEntry returns ErrCorrupt for undecodable or incomplete entries and
// ErrNotFound for entries past their lifetime.
func decodeEntry(data []byte, now time.Time) (*types.StoredToken, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Token == nil || e.Token.ExpiresTime.IsZero() {
		return nil, fmt.Errorf("%w: missing token or expires_time", ErrCorrupt)
	}
	if !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt) {
		return nil, errEntryElapsed
	}
	return e.Token, nil
}

// MultiStorage tries storages in order, e.g. the OS keyring before a file.
//
// A token is written to the first storage that accepts it and removed from
// the later ones, so a fallback copy never outlives a successful write to a
// preferred storage. Reads return the first token found.
type MultiStorage struct {
	storages []TokenStorage
}

// NewMultiStorage creates a storage over storages, most preferred first.
func NewMultiStorage(storages ...TokenStorage) *MultiStorage {
	return &MultiStorage{
		storages: storages,
	}
}

// SaveToken saves the token to the first storage that accepts it.
func (m *MultiStorage) SaveToken(ctx context.Context, token *types.StoredToken) error {
	var errs []error
	for i, storage := range m.storages {
		if err := storage.SaveToken(ctx, token); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, later := range m.storages[i+1:] {
			_ = later.DeleteToken(ctx)
		}
		return nil
	}
	if len(errs) == 0 {
		return fmt.Errorf("no storage configured")
	}
	return errors.Join(errs...)
}

// LoadToken loads the token from the first storage holding one. When none
// does, a medium failure takes precedence over ErrNotFound.
func (m *MultiStorage) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	var firstErr error
	for _, storage := range m.storages {
		token, err := storage.LoadToken(ctx)
		if err == nil && token != nil {
			return token, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNotFound
}

// DeleteToken deletes the token from all storages.
func (m *MultiStorage) DeleteToken(ctx context.Context) error {
	var errs []error
	for _, storage := range m.storages {
		if err := storage.DeleteToken(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Location lists the locations of the storages in order.
func (m *MultiStorage) Location() string {
	locations := make([]string, 0, len(m.storages))
	for _, storage := range m.storages {
		if l := Describe(storage); l != "" {
			locations = append(locations, l)
		}
	}
	return strings.Join(locations, ", ")
}
