package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable auth.Provider keeping its token in memory.
type fakeProvider struct {
	kind types.ProviderType

	mu            sync.Mutex
	stored        *types.StoredToken
	loginToken    *types.StoredToken
	loginErr      error
	callbackToken *types.StoredToken
	callbackErr   error
	refreshFunc   func(refreshToken string) (*types.StoredToken, error)
	logoutTokens  []string

	refreshCalls atomic.Int32
	removeCalls  atomic.Int32
}

func newFakeProvider(kind types.ProviderType) *fakeProvider {
	return &fakeProvider{kind: kind}
}

func (f *fakeProvider) Type() types.ProviderType { return f.kind }

func (f *fakeProvider) InitiateLogin(ctx context.Context, username, password string) (*types.StoredToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.loginToken != nil {
		f.stored = f.loginToken.Clone()
	}
	return f.loginToken.Clone(), nil
}

func (f *fakeProvider) OnCallback(ctx context.Context, callbackURL string) (*types.StoredToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return f.callbackToken.Clone(), nil
}

func (f *fakeProvider) RefreshAuth(ctx context.Context, refreshToken string) (*types.StoredToken, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	fn := f.refreshFunc
	f.mu.Unlock()
	return fn(refreshToken)
}

func (f *fakeProvider) Logout(ctx context.Context, accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutTokens = append(f.logoutTokens, accessToken)
}

func (f *fakeProvider) SaveToken(ctx context.Context, token *types.StoredToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = token.Clone()
}

func (f *fakeProvider) LoadToken(ctx context.Context) *types.StoredToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored.Clone()
}

func (f *fakeProvider) RemoveToken(ctx context.Context) {
	f.removeCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = nil
}

func (f *fakeProvider) setRefresh(fn func(refreshToken string) (*types.StoredToken, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshFunc = fn
}

func (f *fakeProvider) storedToken() *types.StoredToken {
	return f.LoadToken(context.Background())
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// userBackend serves GET /auth/me, naming the user after the bearer token.
type userBackend struct {
	*httptest.Server
	calls      atomic.Int32
	mu         sync.Mutex
	lastBearer string
	reject     bool
}

func newUserBackend(t *testing.T) *userBackend {
	t.Helper()
	b := &userBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/me" {
			http.NotFound(w, r)
			return
		}
		b.calls.Add(1)

		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		b.lastBearer = bearer
		reject := b.reject
		b.mu.Unlock()

		if reject || bearer == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"username": "alice",
			"role":     "editor",
			"scope":    map[string]map[string]bool{"title": {"create": true}},
		})
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *userBackend) bearer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBearer
}

func (b *userBackend) setReject(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reject = v
}

type fixture struct {
	ctrl     *Controller
	provider *fakeProvider
	clock    *fakeClock
	backend  *userBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider := newFakeProvider(types.ProviderLocal)
	clock := newFakeClock()
	backend := newUserBackend(t)

	registry, err := auth.NewRegistry(provider)
	require.NoError(t, err)

	ctrl, err := New(Config{
		Registry:   registry,
		APIBase:    backend.URL + "/v1",
		HTTPClient: backend.Client(),
		Clock:      clock.Now,
	})
	require.NoError(t, err)

	provider.setRefresh(func(refreshToken string) (*types.StoredToken, error) {
		return tokenFor("fresh", clock.Now().Add(time.Hour)), nil
	})

	return &fixture{ctrl: ctrl, provider: provider, clock: clock, backend: backend}
}

func tokenFor(access string, expires time.Time) *types.StoredToken {
	return &types.StoredToken{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    types.ProviderLocal,
		ExpiresTime:  expires,
	}
}

// login authenticates with a token valid for one hour.
func (f *fixture) login(t *testing.T) *types.StoredToken {
	t.Helper()
	token := tokenFor("initial", f.clock.Now().Add(time.Hour))
	f.provider.loginToken = token
	require.True(t, f.ctrl.Authenticate(context.Background(), types.ProviderLocal, "alice", "pw1"), "errors: %v", f.ctrl.Errors())
	return token
}
