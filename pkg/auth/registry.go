package auth

import (
	"fmt"
	"sort"

	"github.com/openzim/cmsctl/pkg/auth/storage"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
)

// Registry holds one provider instance per provider type.
type Registry struct {
	providers   map[types.ProviderType]Provider
	defaultType types.ProviderType
}

// NewRegistry creates a registry from already built providers.
// The first provider becomes the default.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[types.ProviderType]Provider)}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFromConfig builds the providers enabled in config, each with
// its own token store namespace.
func NewRegistryFromConfig(config *Config, logger zerolog.Logger) (*Registry, error) {
	if config == nil {
		return nil, fmt.Errorf("auth config is required")
	}

	storageConfig := config.Storage
	if storageConfig == nil {
		storageConfig = &types.StorageConfig{Type: types.StorageTypeFile}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}

	factory := storage.NewFactory()
	newStore := func(namespace types.ProviderType) (*storage.ProviderStore, error) {
		backend, err := factory.Create(storageConfig, config.CLIName, namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s token storage: %w", namespace, err)
		}
		return storage.NewProviderStore(backend, namespace, logger), nil
	}

	r := &Registry{providers: make(map[types.ProviderType]Provider)}

	if config.Local != nil {
		store, err := newStore(types.ProviderLocal)
		if err != nil {
			return nil, err
		}
		local, err := NewLocalProvider(config.APIBase, config.Local, store, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create local provider: %w", err)
		}
		if err := r.Register(local); err != nil {
			return nil, err
		}
	}

	if config.OAuth != nil {
		store, err := newStore(types.ProviderOAuth)
		if err != nil {
			return nil, err
		}
		oauth, err := NewOAuthProvider(config.OAuth, store, config.Opener, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create oauth provider: %w", err)
		}
		if err := r.Register(oauth); err != nil {
			return nil, err
		}
	}

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no authentication provider configured")
	}

	if config.DefaultProvider != "" {
		if err := r.SetDefault(config.DefaultProvider); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds a provider. Registering the same type twice is an error.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider is nil")
	}
	if !p.Type().Valid() {
		return fmt.Errorf("unknown provider type: %q", p.Type())
	}
	if _, exists := r.providers[p.Type()]; exists {
		return fmt.Errorf("provider %s already registered", p.Type())
	}

	r.providers[p.Type()] = p
	if r.defaultType == "" {
		r.defaultType = p.Type()
	}
	return nil
}

// SetDefault sets the default provider.
func (r *Registry) SetDefault(t types.ProviderType) error {
	if _, exists := r.providers[t]; !exists {
		return fmt.Errorf("provider %s not configured", t)
	}
	r.defaultType = t
	return nil
}

// Default returns the default provider type.
func (r *Registry) Default() types.ProviderType {
	return r.defaultType
}

// Get returns the provider of type t, or the default one when t is empty.
func (r *Registry) Get(t types.ProviderType) (Provider, error) {
	if t == "" {
		t = r.defaultType
	}
	p, exists := r.providers[t]
	if !exists {
		return nil, fmt.Errorf("provider %s not configured", t)
	}
	return p, nil
}

// Types returns the configured provider types in sorted order.
func (r *Registry) Types() []types.ProviderType {
	out := make([]types.ProviderType, 0, len(r.providers))
	for t := range r.providers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
