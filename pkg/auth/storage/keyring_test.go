package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/zalando/go-keyring"
)

func TestNewKeyringStorage(t *testing.T) {
	tests := []struct {
		name        string
		config      *types.StorageConfig
		cliName     string
		wantService string
		wantErr     bool
	}{
		{
			name: "explicit service",
			config: &types.StorageConfig{
				Type:           types.StorageTypeKeyring,
				KeyringService: "test-service",
			},
			cliName:     "test-cli",
			wantService: "test-service",
		},
		{
			name:        "service defaults to cli name",
			config:      &types.StorageConfig{Type: types.StorageTypeKeyring},
			cliName:     "test-cli",
			wantService: "test-cli",
		},
		{
			name:    "missing service and cli name",
			config:  &types.StorageConfig{Type: types.StorageTypeKeyring},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewKeyringStorage(tt.config, tt.cliName, types.ProviderOAuth)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewKeyringStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if want := "keyring:" + tt.wantService + "/oauth"; storage.Location() != want {
				t.Errorf("Location() = %v, want %v", storage.Location(), want)
			}
		})
	}
}

func TestKeyringStorage_RoundTrip(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	config := &types.StorageConfig{Type: types.StorageTypeKeyring, KeyringService: "cmsctl-test"}
	oauth, err := NewKeyringStorage(config, "", types.ProviderOAuth)
	if err != nil {
		t.Fatalf("NewKeyringStorage() failed: %v", err)
	}
	local, err := NewKeyringStorage(config, "", types.ProviderLocal)
	if err != nil {
		t.Fatalf("NewKeyringStorage() failed: %v", err)
	}

	token := &types.StoredToken{
		AccessToken:  "keyring-access",
		RefreshToken: "keyring-refresh",
		TokenType:    types.ProviderOAuth,
		ExpiresTime:  time.Now().Add(time.Hour).UTC(),
	}
	if err := oauth.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken() failed: %v", err)
	}

	loaded, err := oauth.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken() failed: %v", err)
	}
	if loaded.AccessToken != "keyring-access" || loaded.RefreshToken != "keyring-refresh" {
		t.Errorf("LoadToken() = %+v", loaded)
	}

	if _, err := local.LoadToken(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("local LoadToken() error = %v, want ErrNotFound", err)
	}

	if err := oauth.DeleteToken(ctx); err != nil {
		t.Fatalf("DeleteToken() failed: %v", err)
	}
	if err := oauth.DeleteToken(ctx); err != nil {
		t.Errorf("DeleteToken() on missing item failed: %v", err)
	}
	if _, err := oauth.LoadToken(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadToken() after delete error = %v, want ErrNotFound", err)
	}
}

func TestKeyringStorage_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	ctx := context.Background()

	storage, err := NewKeyringStorage(&types.StorageConfig{KeyringService: "cmsctl-test"}, "", types.ProviderLocal)
	if err != nil {
		t.Fatalf("NewKeyringStorage() failed: %v", err)
	}

	token := &types.StoredToken{AccessToken: "a", TokenType: types.ProviderLocal, ExpiresTime: time.Now().Add(time.Hour)}
	if err := storage.SaveToken(ctx, token); err == nil {
		t.Error("SaveToken() should fail when the keyring is unavailable")
	}
	if _, err := storage.LoadToken(ctx); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("LoadToken() error = %v, want a medium failure", err)
	}
}

func TestKeyringStorage_SaveTokenNil(t *testing.T) {
	keyring.MockInit()

	storage, err := NewKeyringStorage(&types.StorageConfig{KeyringService: "cmsctl-test"}, "", types.ProviderLocal)
	if err != nil {
		t.Fatalf("NewKeyringStorage() failed: %v", err)
	}

	if err := storage.SaveToken(context.Background(), nil); err == nil {
		t.Error("SaveToken() should return error for nil token")
	}
}
