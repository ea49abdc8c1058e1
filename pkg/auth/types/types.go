// Package types defines common types used across the auth packages.
package types

import (
	"time"
)

// ProviderType tags one of the supported authentication providers.
type ProviderType string

const (
	// ProviderOAuth is the OAuth/session redirect provider.
	ProviderOAuth ProviderType = "oauth"
	// ProviderLocal is the local username+password provider.
	ProviderLocal ProviderType = "local"
)

// Valid reports whether p is one of the known provider types.
func (p ProviderType) Valid() bool {
	return p == ProviderOAuth || p == ProviderLocal
}

// StoredToken is the credential record persisted per provider.
type StoredToken struct {
	// AccessToken is the bearer credential.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain a new access token.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is the provider that issued the token.
	TokenType ProviderType `json:"token_type"`
	// ExpiresTime is when the access token stops being usable.
	ExpiresTime time.Time `json:"expires_time"`
}

// Expired reports whether the token is past its expiry at now.
func (t *StoredToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresTime)
}

// IsValid reports whether the token carries an access token and is not expired at now.
func (t *StoredToken) IsValid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && !t.ExpiresTime.IsZero() && !t.Expired(now)
}

// Clone returns a copy of the token.
func (t *StoredToken) Clone() *StoredToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// User is the identity returned by the backend for an access token.
type User struct {
	Username string                     `json:"username" yaml:"username"`
	Role     string                     `json:"role,omitempty" yaml:"role,omitempty"`
	Scope    map[string]map[string]bool `json:"scope" yaml:"scope"`
}

// Can reports whether the user is granted action on resource.
func (u *User) Can(resource, action string) bool {
	if u == nil {
		return false
	}
	return u.Scope[resource][action]
}

// StorageConfig represents token storage configuration.
type StorageConfig struct {
	// Type is the storage backend type.
	Type StorageType `yaml:"type" json:"type" mapstructure:"type"`
	// Path is the directory for file-based storage.
	Path string `yaml:"path,omitempty" json:"path,omitempty" mapstructure:"path"`
	// KeyringService is the service name for keyring storage.
	KeyringService string `yaml:"keyring_service,omitempty" json:"keyring_service,omitempty" mapstructure:"keyring_service"`
	// Lifetime bounds how long an entry is kept, independently of the token's own expiry.
	Lifetime time.Duration `yaml:"lifetime,omitempty" json:"lifetime,omitempty" mapstructure:"lifetime"`
}

// StorageType represents the type of token storage.
type StorageType string

const (
	// StorageTypeFile uses file-based storage.
	StorageTypeFile StorageType = "file"
	// StorageTypeKeyring uses OS keyring storage.
	StorageTypeKeyring StorageType = "keyring"
	// StorageTypeMemory uses in-memory storage.
	StorageTypeMemory StorageType = "memory"
	// StorageTypeAuto uses the OS keyring and falls back to a file.
	StorageTypeAuto StorageType = "auto"
)

// DefaultEntryLifetime is how long a stored entry survives when no lifetime is configured.
const DefaultEntryLifetime = 10 * 365 * 24 * time.Hour
