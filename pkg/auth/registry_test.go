package auth

import (
	"testing"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryFromConfig(t *testing.T) {
	memory := &types.StorageConfig{Type: types.StorageTypeMemory}

	tests := []struct {
		name        string
		config      *Config
		wantTypes   []types.ProviderType
		wantDefault types.ProviderType
		wantErr     bool
	}{
		{
			name:    "nil config",
			wantErr: true,
		},
		{
			name:    "no provider",
			config:  &Config{APIBase: "https://api.example.org/v1", Storage: memory},
			wantErr: true,
		},
		{
			name:        "local only",
			config:      &Config{APIBase: "https://api.example.org/v1", Local: &LocalConfig{}, Storage: memory},
			wantTypes:   []types.ProviderType{types.ProviderLocal},
			wantDefault: types.ProviderLocal,
		},
		{
			name: "both with oauth default",
			config: &Config{
				APIBase:         "https://api.example.org/v1",
				DefaultProvider: types.ProviderOAuth,
				Local:           &LocalConfig{},
				OAuth:           &OAuthConfig{BaseURL: "https://login.example.org", ClientID: "c", RedirectURL: "http://localhost:8085/callback"},
				Storage:         memory,
			},
			wantTypes:   []types.ProviderType{types.ProviderLocal, types.ProviderOAuth},
			wantDefault: types.ProviderOAuth,
		},
		{
			name: "default not configured",
			config: &Config{
				APIBase:         "https://api.example.org/v1",
				DefaultProvider: types.ProviderOAuth,
				Local:           &LocalConfig{},
				Storage:         memory,
			},
			wantErr: true,
		},
		{
			name: "invalid oauth config",
			config: &Config{
				APIBase: "https://api.example.org/v1",
				OAuth:   &OAuthConfig{BaseURL: "https://login.example.org"},
				Storage: memory,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistryFromConfig(tt.config, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTypes, r.Types())
			assert.Equal(t, tt.wantDefault, r.Default())
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	local, err := NewLocalProvider("https://api.example.org/v1", nil, newTestStore(types.ProviderLocal), nil, zerolog.Nop())
	require.NoError(t, err)

	r, err := NewRegistry(local)
	require.NoError(t, err)

	p, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, types.ProviderLocal, p.Type())

	_, err = r.Get(types.ProviderOAuth)
	assert.Error(t, err)

	assert.Error(t, r.Register(local), "duplicate registration")
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.SetDefault(types.ProviderOAuth))
}
