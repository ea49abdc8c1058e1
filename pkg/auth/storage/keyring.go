package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/zalando/go-keyring"
)

// KeyringStorage implements OS keyring-based token storage.
// The namespace is used as the keyring user so each provider owns its own item.
type KeyringStorage struct {
	service  string
	user     string
	lifetime time.Duration
	now      func() time.Time
}

// NewKeyringStorage creates a new keyring-based storage.
func NewKeyringStorage(config *types.StorageConfig, cliName string, namespace types.ProviderType) (*KeyringStorage, error) {
	service := config.KeyringService
	if service == "" {
		service = cliName
	}
	if service == "" {
		return nil, fmt.Errorf("keyring_service is required for keyring storage")
	}

	return &KeyringStorage{
		service:  service,
		user:     string(namespace),
		lifetime: config.Lifetime,
		now:      time.Now,
	}, nil
}

// SaveToken saves a token to the OS keyring.
func (k *KeyringStorage) SaveToken(ctx context.Context, token *types.StoredToken) error {
	data, err := encodeEntry(token, k.lifetime, k.now())
	if err != nil {
		return err
	}

	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}

	return nil
}

// LoadToken loads a token from the OS keyring.
func (k *KeyringStorage) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	data, err := keyring.Get(k.service, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve token from keyring: %w", err)
	}

	return decodeEntry([]byte(data), k.now())
}

// DeleteToken deletes the token from the OS keyring.
func (k *KeyringStorage) DeleteToken(ctx context.Context) error {
	if err := keyring.Delete(k.service, k.user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// Location names the keyring item as keyring:<service>/<user>.
func (k *KeyringStorage) Location() string {
	return "keyring:" + k.service + "/" + k.user
}
