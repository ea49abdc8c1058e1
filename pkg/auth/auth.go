// Package auth provides the authentication providers of the CMS console.
//
// Two providers implement the same capability set:
//
//   - oauth: redirect flow against an OAuth2 authorization server. Login hands
//     the authorization URL to a BrowserOpener; the token arrives later through
//     OnCallback with the full redirect URL.
//   - local: username and password checked by the CMS backend, which answers
//     with an access/refresh token pair.
//
// Each provider owns an independent token store namespace, so switching
// providers never mixes their tokens.
//
// # Example: local login
//
//	registry, _ := auth.NewRegistryFromConfig(cfg, logger)
//	local, _ := registry.Get(types.ProviderLocal)
//	token, err := local.InitiateLogin(ctx, "alice", "secret")
//
// # Refresh failures
//
// RefreshAuth returns an *AuthError when the provider rejects the refresh and a
// *NetworkError when no response was received. IsPermanent classifies the
// former into failures that invalidate the stored refresh token and failures
// that may be retried.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
)

// StorageLocator is implemented by providers that can describe where their
// tokens are persisted.
type StorageLocator interface {
	StorageLocation() string
}

// StoredToken is an alias for types.StoredToken.
type StoredToken = types.StoredToken

// Provider is the capability set every authentication provider implements.
type Provider interface {
	// Type returns the provider tag.
	Type() types.ProviderType

	// InitiateLogin starts a login. The local provider returns the stored
	// token; the oauth provider starts the redirect and returns a nil token.
	InitiateLogin(ctx context.Context, username, password string) (*StoredToken, error)

	// OnCallback parses a redirect URL and exchanges its parameters for a token.
	OnCallback(ctx context.Context, callbackURL string) (*StoredToken, error)

	// RefreshAuth exchanges a refresh token for a new token.
	RefreshAuth(ctx context.Context, refreshToken string) (*StoredToken, error)

	// Logout revokes the access token on a best-effort basis. It never fails.
	Logout(ctx context.Context, accessToken string)

	// SaveToken persists the token in this provider's namespace.
	SaveToken(ctx context.Context, token *StoredToken)

	// LoadToken returns the persisted token or nil.
	LoadToken(ctx context.Context) *StoredToken

	// RemoveToken deletes the persisted token.
	RemoveToken(ctx context.Context)
}

// Config represents authentication configuration.
type Config struct {
	// CLIName scopes default storage locations.
	CLIName string `yaml:"-" json:"-"`

	// APIBase is the CMS API root, e.g. https://api.cms.example.org/v1.
	APIBase string `yaml:"cms_api" json:"cms_api"`

	// DefaultProvider is used when no provider is named.
	DefaultProvider types.ProviderType `yaml:"default_provider,omitempty" json:"default_provider,omitempty"`

	// OAuth enables the oauth provider.
	OAuth *OAuthConfig `yaml:"oauth,omitempty" json:"oauth,omitempty"`

	// Local enables the local provider.
	Local *LocalConfig `yaml:"local,omitempty" json:"local,omitempty"`

	// Storage configuration for token persistence.
	Storage *types.StorageConfig `yaml:"storage,omitempty" json:"storage,omitempty"`

	// HTTPClient is shared by all providers. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client `yaml:"-" json:"-"`

	// Opener receives the authorization URL of oauth logins.
	Opener BrowserOpener `yaml:"-" json:"-"`
}

// OAuthConfig represents the oauth provider configuration.
type OAuthConfig struct {
	// BaseURL is the authorization server root; endpoint URLs default from it.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// ClientID is the OAuth2 client identifier.
	ClientID string `yaml:"client_id" json:"client_id"`
	// ClientSecret is the OAuth2 client secret, empty for public clients.
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	// AuthURL is the authorization endpoint.
	AuthURL string `yaml:"auth_url,omitempty" json:"auth_url,omitempty"`
	// TokenURL is the token endpoint.
	TokenURL string `yaml:"token_url,omitempty" json:"token_url,omitempty"`
	// RevokeURL is the RFC 7009 revocation endpoint.
	RevokeURL string `yaml:"revoke_url,omitempty" json:"revoke_url,omitempty"`
	// RedirectURL is where the authorization server sends the browser back.
	RedirectURL string `yaml:"redirect_url,omitempty" json:"redirect_url,omitempty"`
	// Scopes are the requested OAuth2 scopes.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	// PKCE enables Proof Key for Code Exchange.
	PKCE bool `yaml:"pkce,omitempty" json:"pkce,omitempty"`
	// DefaultLifetime is used when neither the token response nor the JWT carry an expiry.
	DefaultLifetime time.Duration `yaml:"default_lifetime,omitempty" json:"default_lifetime,omitempty"`
}

// LocalConfig represents the local provider configuration.
type LocalConfig struct {
	// DefaultLifetime is used when the backend response carries no expiry.
	DefaultLifetime time.Duration `yaml:"default_lifetime,omitempty" json:"default_lifetime,omitempty"`
}

// defaultTokenLifetime applies when neither response nor configuration give one.
const defaultTokenLifetime = time.Hour

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
