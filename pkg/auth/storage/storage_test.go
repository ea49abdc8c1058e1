package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

func TestFactory_Create(t *testing.T) {
	factory := NewFactory()

	tests := []struct {
		name      string
		config    *types.StorageConfig
		namespace types.ProviderType
		wantErr   bool
	}{
		{
			name:      "memory storage",
			config:    &types.StorageConfig{Type: types.StorageTypeMemory},
			namespace: types.ProviderLocal,
		},
		{
			name:      "file storage",
			config:    &types.StorageConfig{Type: types.StorageTypeFile, Path: t.TempDir()},
			namespace: types.ProviderOAuth,
		},
		{
			name:      "keyring storage",
			config:    &types.StorageConfig{Type: types.StorageTypeKeyring, KeyringService: "svc"},
			namespace: types.ProviderOAuth,
		},
		{
			name:      "keyring with file fallback",
			config:    &types.StorageConfig{Type: types.StorageTypeAuto, KeyringService: "svc", Path: t.TempDir()},
			namespace: types.ProviderLocal,
		},
		{
			name:      "nil config",
			config:    nil,
			namespace: types.ProviderLocal,
			wantErr:   true,
		},
		{
			name:      "unsupported type",
			config:    &types.StorageConfig{Type: "cookie"},
			namespace: types.ProviderLocal,
			wantErr:   true,
		},
		{
			name:      "unknown namespace",
			config:    &types.StorageConfig{Type: types.StorageTypeMemory},
			namespace: "saml",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := factory.Create(tt.config, "test-cli", tt.namespace)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && storage == nil {
				t.Error("Create() returned nil storage")
			}
		})
	}
}

// mockStorage is a TokenStorage with injectable failures.
type mockStorage struct {
	token     *types.StoredToken
	saveErr   error
	loadErr   error
	deleteErr error
	deletes   int
}

func (m *mockStorage) SaveToken(ctx context.Context, token *types.StoredToken) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	return nil
}

func (m *mockStorage) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.token == nil {
		return nil, ErrNotFound
	}
	return m.token, nil
}

func (m *mockStorage) DeleteToken(ctx context.Context) error {
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.token = nil
	return nil
}

func TestMultiStorage_SaveToken(t *testing.T) {
	ctx := context.Background()
	token := &types.StoredToken{AccessToken: "a", TokenType: types.ProviderLocal, ExpiresTime: time.Now().Add(time.Hour)}

	t.Run("preferred storage clears the fallback", func(t *testing.T) {
		preferred := &mockStorage{}
		fallback := &mockStorage{token: &types.StoredToken{AccessToken: "stale"}}
		multi := NewMultiStorage(preferred, fallback)

		if err := multi.SaveToken(ctx, token); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}
		if preferred.token == nil || preferred.token.AccessToken != "a" {
			t.Errorf("preferred storage token = %v, want a", preferred.token)
		}
		if fallback.token != nil || fallback.deletes != 1 {
			t.Errorf("fallback token = %v (deletes %d), want removed", fallback.token, fallback.deletes)
		}
	})

	t.Run("falls back when the preferred storage fails", func(t *testing.T) {
		failing := &mockStorage{saveErr: errors.New("no secret service")}
		working := &mockStorage{}
		multi := NewMultiStorage(failing, working)

		if err := multi.SaveToken(ctx, token); err != nil {
			t.Errorf("SaveToken() error = %v, want nil when one backend succeeds", err)
		}
		if working.token == nil {
			t.Error("working backend did not receive the token")
		}
		if failing.deletes != 0 {
			t.Errorf("failing backend deletes = %d, want 0", failing.deletes)
		}
	})

	t.Run("all backends fail", func(t *testing.T) {
		multi := NewMultiStorage(&mockStorage{saveErr: errors.New("a")}, &mockStorage{saveErr: errors.New("b")})
		err := multi.SaveToken(ctx, token)
		if err == nil {
			t.Fatal("SaveToken() should fail when every backend fails")
		}
		if !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "b") {
			t.Errorf("SaveToken() error = %v, want both causes", err)
		}
	})
}

func TestMultiStorage_LoadToken(t *testing.T) {
	ctx := context.Background()
	token := &types.StoredToken{AccessToken: "second", TokenType: types.ProviderLocal, ExpiresTime: time.Now().Add(time.Hour)}

	multi := NewMultiStorage(&mockStorage{loadErr: errors.New("locked")}, &mockStorage{token: token})
	loaded, err := multi.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken() failed: %v", err)
	}
	if loaded.AccessToken != "second" {
		t.Errorf("AccessToken = %v, want second", loaded.AccessToken)
	}

	empty := NewMultiStorage(&mockStorage{}, &mockStorage{})
	if _, err := empty.LoadToken(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadToken() error = %v, want ErrNotFound", err)
	}

	locked := NewMultiStorage(&mockStorage{loadErr: errors.New("locked")}, &mockStorage{})
	if _, err := locked.LoadToken(ctx); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("LoadToken() error = %v, want the medium failure", err)
	}
}

func TestMultiStorage_DeleteToken(t *testing.T) {
	first := &mockStorage{}
	second := &mockStorage{deleteErr: errors.New("denied")}
	multi := NewMultiStorage(first, second)

	if err := multi.DeleteToken(context.Background()); err == nil {
		t.Error("DeleteToken() should report the failing backend")
	}
	if first.deletes != 1 || second.deletes != 1 {
		t.Errorf("deletes = %d/%d, want 1/1", first.deletes, second.deletes)
	}
}

func TestFactory_CreateAuto(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFactory().Create(&types.StorageConfig{Type: types.StorageTypeAuto, Path: dir}, "cmsctl-test", types.ProviderLocal)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := "keyring:cmsctl-test/local, " + filepath.Join(dir, "token-local.json")
	if got := Describe(backend); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}

	token := &types.StoredToken{AccessToken: "a", TokenType: types.ProviderLocal, ExpiresTime: time.Now().Add(time.Hour)}
	if err := backend.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken() error = %v, want the file fallback to succeed", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "token-local.json")); err != nil {
		t.Errorf("fallback file not written: %v", err)
	}

	loaded, err := backend.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if loaded.AccessToken != "a" {
		t.Errorf("AccessToken = %v, want a", loaded.AccessToken)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(NewMemoryStorage(0)); got != "memory" {
		t.Errorf("Describe(memory) = %q", got)
	}
	if got := Describe(&mockStorage{}); got != "" {
		t.Errorf("Describe(mock) = %q, want empty", got)
	}
	store := NewProviderStore(NewMemoryStorage(0), types.ProviderOAuth, zerolog.Nop())
	if got := store.Location(); got != "memory" {
		t.Errorf("Location() = %q", got)
	}
}

func TestProviderStore_SaveFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	backend := &mockStorage{saveErr: errors.New("quota exceeded")}
	store := NewProviderStore(backend, types.ProviderLocal, zerolog.New(&buf))

	store.Save(context.Background(), &types.StoredToken{AccessToken: "a", ExpiresTime: time.Now().Add(time.Hour)})

	if !strings.Contains(buf.String(), "quota exceeded") {
		t.Errorf("log output %q does not mention the failure", buf.String())
	}
	if !strings.Contains(buf.String(), `"namespace":"local"`) {
		t.Errorf("log output %q does not carry the namespace", buf.String())
	}
}

func TestProviderStore_Load(t *testing.T) {
	ctx := context.Background()
	valid := &types.StoredToken{AccessToken: "a", TokenType: types.ProviderOAuth, ExpiresTime: time.Now().Add(time.Hour)}

	tests := []struct {
		name        string
		backend     *mockStorage
		wantToken   bool
		wantDeletes int
	}{
		{name: "present", backend: &mockStorage{token: valid}, wantToken: true},
		{name: "absent", backend: &mockStorage{}},
		{name: "corrupt entry is removed", backend: &mockStorage{loadErr: ErrCorrupt}, wantDeletes: 1},
		{name: "elapsed entry is removed", backend: &mockStorage{loadErr: errEntryElapsed}, wantDeletes: 1},
		{name: "medium unavailable", backend: &mockStorage{loadErr: errors.New("dbus down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewProviderStore(tt.backend, types.ProviderOAuth, zerolog.Nop())
			got := store.Load(ctx)
			if (got != nil) != tt.wantToken {
				t.Errorf("Load() = %v, wantToken %v", got, tt.wantToken)
			}
			if tt.backend.deletes != tt.wantDeletes {
				t.Errorf("deletes = %d, want %d", tt.backend.deletes, tt.wantDeletes)
			}
		})
	}
}

func TestProviderStore_CorruptMemoryEntry(t *testing.T) {
	backend := NewMemoryStorage(0)
	backend.SetRaw([]byte("not json"))
	store := NewProviderStore(backend, types.ProviderLocal, zerolog.Nop())

	if got := store.Load(context.Background()); got != nil {
		t.Errorf("Load() = %v, want nil for corrupt entry", got)
	}
	if _, err := backend.LoadToken(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("corrupt entry was not removed: %v", err)
	}
}

func TestProviderStore_RemoveIsIdempotent(t *testing.T) {
	backend := &mockStorage{}
	store := NewProviderStore(backend, types.ProviderLocal, zerolog.Nop())

	store.Remove(context.Background())
	store.Remove(context.Background())

	if backend.deletes != 2 {
		t.Errorf("deletes = %d, want 2", backend.deletes)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Operation: "save", Namespace: "oauth", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("Error does not unwrap to its cause")
	}
	if got := err.Error(); got != "save token for oauth: boom" {
		t.Errorf("Error() = %q", got)
	}
}
